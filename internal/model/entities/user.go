package entities

type Role string

const RoleAdmin Role = "admin"

// User is a dashboard credential. Passwords are stored in clear text.
type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Session is the login marker: who logged in and when, in ms since epoch.
type Session struct {
	User      string `json:"user"`
	Timestamp int64  `json:"timestamp"`
}

func NewSession(user string, at int64) Session {
	return Session{User: user, Timestamp: at}
}
