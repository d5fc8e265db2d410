package handlers

import (
	"errors"
	"net/http"

	"facemorph/storage"
	"facemorph/swap"
)

type Response struct {
	Error string `json:"error"`
}

type SwapResponse struct {
	Result    string `json:"result"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Triangles int    `json:"triangles"`
	Skipped   int    `json:"skipped"`
}

type MorphResponse struct {
	Image    string `json:"image"`
	Result   string `json:"result"`
	Labels   string `json:"labels"`
	Clusters int    `json:"clusters"`
}

type LandmarksResponse struct {
	Points  [][2]int         `json:"points"`
	Regions map[string][]int `json:"regions"`
}

const (
	MessageUploadImage  = "Please upload an image!"
	MessageUploadBoth   = "Please upload both images!"
	MessageFaceNotFound = "Could not detect face in one of the images."
	MessageBadUpload    = "could not read the upload"
	MessageNoSpace      = "not enough disk space"
	MessageUnexpected   = "something went wrong"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrMissingImage = &InputError{Message: MessageUploadImage}
	ErrMissingBoth  = &InputError{Message: MessageUploadBoth}
)

// InputError is a problem with the request the user can fix, Message is shown as is
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// UserMessage maps an error to the message and status shown to the user
func UserMessage(err error) (string, int) {
	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		return inputErr.Message, http.StatusBadRequest
	case errors.Is(err, swap.ErrFaceNotDetected):
		return MessageFaceNotFound, http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotEnoughSpace):
		return MessageNoSpace, http.StatusInsufficientStorage
	}
	return MessageUnexpected, http.StatusInternalServerError
}
