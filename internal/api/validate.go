package api

import (
	"fmt"
	"net/mail"
	"strings"

	"formbridge/internal/model"
)

const maxMessageLen = 10000

func validateSubmission(in *model.SubmissionIn) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("invalid email address")
	}
	if strings.TrimSpace(in.Message) == "" {
		return fmt.Errorf("message is required")
	}
	if len(in.Message) > maxMessageLen {
		return fmt.Errorf("message exceeds %d bytes", maxMessageLen)
	}
	return nil
}
