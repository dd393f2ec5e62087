package schemas

import (
	"time"
)

// User is the read-only profile owned by the identity backend.
type User struct {
	ID             UserId
	Name           string
	Email          string
	Bio            string
	Location       string
	Website        string
	ProfilePicture string
	CreatedAt      time.Time
}

// Display is the identity shown next to posts and comments.
type Display struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

type ProfileData struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Bio            string `json:"bio,omitempty"`
	Location       string `json:"location,omitempty"`
	Website        string `json:"website,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

func (u *User) ToDisplay() Display {
	return Display{
		ID:             string(u.ID),
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
	}
}

func (u *User) ToProfileData() ProfileData {
	return ProfileData{
		ID:             string(u.ID),
		Name:           u.Name,
		Email:          u.Email,
		Bio:            u.Bio,
		Location:       u.Location,
		Website:        u.Website,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type usersList struct {
	Users       []ProfileData `json:"users"`
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
	TotalCount  int64         `json:"totalCount"`
}

func UsersListFromUsers(users []*User, currentPage, totalPages int, totalCount int64) usersList {
	ul := make([]ProfileData, 0, len(users))

	for i := range users {
		ul = append(ul, users[i].ToProfileData())
	}

	return usersList{
		Users:       ul,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
	}
}
