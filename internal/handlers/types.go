package handlers

import "time"

// CreateShareRequest is the request body for creating a share link.
type CreateShareRequest struct {
	Body struct {
		URL string `doc:"The URL to share" example:"https://beyondsyllabus.in/vtu/cse/2022/5/bcs501" json:"url" maxLength:"2048" minLength:"1"`
	}
}

// CreateShareResponse is the response for a newly issued share link.
type CreateShareResponse struct {
	Location string `doc:"The share link" header:"Location"`
	Body     struct {
		Token     string    `doc:"The share token"                 example:"aZ3kQ9"                                 json:"token"`
		URL       string    `doc:"The full share link"             example:"https://beyondsyllabus.in/share/aZ3kQ9" json:"url"`
		ExpiresAt time.Time `doc:"When the link stops resolving"   json:"expiresAt"`
	}
}

// GetShareRequest identifies a share link by token.
type GetShareRequest struct {
	Token string `doc:"The share token" example:"aZ3kQ9" maxLength:"64" minLength:"1" path:"token"`
}

// GetShareResponse carries the target URL of a live share link.
type GetShareResponse struct {
	Body struct {
		URL string `doc:"The shared target URL" example:"https://beyondsyllabus.in/vtu/cse/2022/5/bcs501" json:"url"`
	}
}

// RedirectResponse sends the client on to the target URL.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}
