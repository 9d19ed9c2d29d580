package xpost

import "context"

// Request is the post payload handed to every mirror target.
type Request struct {
	Message string
	// Link is appended to the message when set.
	Link string
	// Image holds the poster bytes and ImageName its file name.
	Image     []byte
	ImageName string
	ImageAlt  string
}

// HasImage reports whether the request carries an image.
func (r Request) HasImage() bool { return len(r.Image) > 0 }

// Poster abstracts a social network that can publish content.
type Poster interface {
	Name() string
	Post(ctx context.Context, req Request) error
}
