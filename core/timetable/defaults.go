package timetable

// Default returns the standard college day.
func Default() Timetable {
	return Timetable{periods: []Period{
		{ID: 1, Name: "Lecture 1 - Data Structures", Start: 9 * 60, End: 10*60 + 30, Duration: 90, Kind: KindLecture},
		{ID: 2, Name: "Break", Start: 10*60 + 30, End: 10*60 + 45, Duration: 15, Kind: KindBreak},
		{ID: 3, Name: "Lecture 2 - Algorithms", Start: 10*60 + 45, End: 12*60 + 15, Duration: 90, Kind: KindLecture},
		{ID: 4, Name: "Lunch Break", Start: 12*60 + 15, End: 13*60 + 15, Duration: 60, Kind: KindBreak},
		{ID: 5, Name: "Lecture 3 - Database Systems", Start: 13*60 + 15, End: 14*60 + 45, Duration: 90, Kind: KindLecture},
		{ID: 6, Name: "Break", Start: 14*60 + 45, End: 15 * 60, Duration: 15, Kind: KindBreak},
		{ID: 7, Name: "Lab Session - Programming", Start: 15 * 60, End: 17 * 60, Duration: 120, Kind: KindLab},
		{ID: 8, Name: "Tutorial Session", Start: 17 * 60, End: 18 * 60, Duration: 60, Kind: KindTutorial},
	}}
}
