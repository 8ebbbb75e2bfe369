package user

import (
	"github.com/pkg/errors"
)

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
)

var (
	Roles = []Role{RoleAdmin, RoleTeacher, RoleParent, RoleStudent}

	// errors
	ErrNotFound    = errors.New("user not found")
	ErrUnknownRole = errors.New("unknown role")
)

// Role is the tag every dashboard and permission check dispatches on.
type Role string

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errors.Wrapf(ErrUnknownRole, "got %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleTeacher }

type Child struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Course string `json:"course"`
	Year   string `json:"year"`
	RollNo string `json:"roll_no"`
}

type User struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Role       Role     `json:"role"`
	Department string   `json:"department,omitempty"`
	Course     string   `json:"course,omitempty"`
	Year       string   `json:"year,omitempty"`
	RollNo     string   `json:"roll_no,omitempty"`
	Courses    []string `json:"courses,omitempty"`
	Children   []Child  `json:"children,omitempty"`
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsParent() bool  { return u.Role == RoleParent }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// CanViewAttendance reports whether u may read the attendance history of the student with rollNo:
// staff see everyone, students see themselves, parents see their children.
func (u User) CanViewAttendance(rollNo string) bool {
	switch u.Role {
	case RoleAdmin, RoleTeacher:
		return true
	case RoleStudent:
		return u.RollNo == rollNo
	case RoleParent:
		for _, child := range u.Children {
			if child.RollNo == rollNo {
				return true
			}
		}
	}
	return false
}

// LoginCredentials is the body of a login request.
type LoginCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,notblank"`
	Role     string `json:"role" validate:"required,role"`
}

type Tab struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Dashboard describes the view a role lands on after login.
type Dashboard struct {
	Role  Role   `json:"role"`
	Title string `json:"title"`
	Tabs  []Tab  `json:"tabs"`
}

// DashboardFor returns the dashboard of role.
func DashboardFor(role Role) (Dashboard, error) {
	switch role {
	case RoleAdmin:
		return Dashboard{Role: role, Title: "Admin Dashboard", Tabs: []Tab{
			{"overview", "Overview"},
			{"schools", "Colleges"},
			{"teachers", "Faculty"},
			{"students", "Students"},
			{"geofence", "Geofence"},
		}}, nil
	case RoleTeacher:
		return Dashboard{Role: role, Title: "Professor Dashboard", Tabs: []Tab{
			{"attendance", "Mark Attendance"},
			{"self-attendance", "Self Attendance"},
			{"reports", "Reports"},
			{"calendar", "Calendar"},
			{"periods", "Lectures"},
		}}, nil
	case RoleParent:
		return Dashboard{Role: role, Title: "Parent Dashboard", Tabs: []Tab{
			{"overview", "Overview"},
			{"attendance", "Attendance"},
			{"calendar", "Calendar"},
			{"notifications", "Notifications"},
		}}, nil
	case RoleStudent:
		return Dashboard{Role: role, Title: "Student Portal", Tabs: []Tab{
			{"overview", "Overview"},
			{"attendance", "Mark Attendance"},
			{"schedule", "Schedule"},
			{"history", "Attendance History"},
		}}, nil
	default:
		return Dashboard{}, errors.Wrapf(ErrUnknownRole, "got %q", role)
	}
}
