package user

import (
	"context"
	"net/mail"
	"sort"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/presence/core"
)

// rollNoMinSim is the similarity ratio a roll number needs to be suggested.
const rollNoMinSim = 0.6

// Directory is the in-memory set of known users, one per role on the login screen.
type Directory struct {
	mu    sync.RWMutex
	users map[int]User
}

func NewDirectory(users ...User) *Directory {
	d := &Directory{users: make(map[int]User, len(users))}
	for _, usr := range users {
		d.users[usr.ID] = usr
	}
	return d
}

// DefaultDirectory returns the demo users.
func DefaultDirectory() *Directory {
	return NewDirectory(
		User{ID: 1, Name: "Dr. Sarah Wilson", Email: "admin@college.edu", Role: RoleAdmin},
		User{
			ID:         2,
			Name:       "Prof. John Smith",
			Email:      "professor@college.edu",
			Role:       RoleTeacher,
			Department: "Computer Science",
			Courses:    []string{"CS101", "CS201"},
		},
		User{
			ID:    3,
			Name:  "Parent User",
			Email: "parent@email.com",
			Role:  RoleParent,
			Children: []Child{
				{ID: 4, Name: "Alex Kumar", Course: "B.Tech Computer Science", Year: "2nd Year", RollNo: "CS21012"},
			},
		},
		User{
			ID:         4,
			Name:       "Alex Kumar",
			Email:      "student@college.edu",
			Role:       RoleStudent,
			Department: "Computer Science",
			Course:     "B.Tech Computer Science",
			Year:       "2nd Year",
			RollNo:     "CS21012",
		},
	)
}

// query returns every user ordered by ID. mu must be held.
func (d *Directory) query() []User {
	users := make([]User, 0, len(d.users))
	for _, usr := range d.users {
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (d *Directory) QueryAll() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.query()
}

func (d *Directory) GetByID(id int) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if usr, ok := d.users[id]; ok {
		return usr, nil
	}
	return User{}, ErrNotFound
}

func (d *Directory) GetByRollNo(rollNo string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, usr := range d.query() {
		if usr.IsStudent() && usr.RollNo == rollNo {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

// Login resolves the user signing in with role.
// Credentials are not checked: the first user holding the role is returned,
// preferring one whose email matches.
func (d *Directory) Login(email string, role Role) (User, error) {
	if !role.Valid() {
		return User{}, ErrUnknownRole
	}
	email = core.CleanString(email, true /* lower */)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var (
		found User
		ok    bool
	)
	for _, usr := range d.query() {
		if usr.Role != role {
			continue
		}
		if usr.Email == email {
			return usr, nil
		}
		if !ok {
			found, ok = usr, true
		}
	}
	if !ok {
		return User{}, ErrNotFound
	}
	return found, nil
}

// Students returns the students, ordered by ID.
func (d *Directory) Students() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var students []User
	for _, usr := range d.query() {
		if usr.IsStudent() {
			students = append(students, usr)
		}
	}
	return students
}

// SuggestRollNos returns up to n known roll numbers that look like rollNo, closest first.
func (d *Directory) SuggestRollNos(rollNo string, n int) []string {
	if n <= 0 {
		return nil
	}
	target := strings.Split(strings.ToUpper(core.CleanString(rollNo)), "")

	type match struct {
		rollNo string
		ratio  float64
	}
	var matches []match
	for _, student := range d.Students() {
		ratio := difflib.NewMatcher(target, strings.Split(student.RollNo, "")).Ratio()
		if ratio >= rollNoMinSim {
			matches = append(matches, match{rollNo: student.RollNo, ratio: ratio})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].ratio > matches[j].ratio })

	if len(matches) > n {
		matches = matches[:n]
	}
	suggestions := make([]string, len(matches))
	for i, m := range matches {
		suggestions[i] = m.rollNo
	}
	return suggestions
}

// GuardiansOf returns the name of the student with rollNo and the addresses of their parents.
func (d *Directory) GuardiansOf(ctx context.Context, rollNo string) (string, []mail.Address, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	student, err := d.GetByRollNo(rollNo)
	if err != nil {
		return "", nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	var addrs []mail.Address
	for _, usr := range d.query() {
		if usr.IsParent() && usr.CanViewAttendance(rollNo) {
			addrs = append(addrs, mail.Address{Name: usr.Name, Address: usr.Email})
		}
	}
	return student.Name, addrs, nil
}
