package main

import (
	"errors"
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/election"
)

var failurePage = template.Must(template.New("verification-failure").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Verification failed</title></head>
<body style="font-family: Arial, sans-serif; max-width: 560px; margin: 40px auto;">
  <h2>Email verification failed</h2>
  <p>{{.Message}}</p>
  {{if .HomeURL}}<p><a href="{{.HomeURL}}">Return to the voting page</a> to request a new link.</p>{{end}}
</body>
</html>
`))

func failureMessage(err error) string {
	switch {
	case errors.Is(err, election.ErrExpiredToken):
		return "This verification link has expired."
	case errors.Is(err, election.ErrAlreadyUsed):
		return "This verification link has already been used."
	case errors.Is(err, election.ErrAlreadyVoted):
		return "You have already voted in this election."
	case errors.Is(err, election.ErrInvalidToken), errors.Is(err, election.ErrNotEligible):
		return "This verification link is not valid."
	default:
		return "Something went wrong while verifying your email. Please try again."
	}
}

func renderVerificationFailure(c *gin.Context, status int, message, homeURL string) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := failurePage.Execute(c.Writer, struct{ Message, HomeURL string }{message, homeURL}); err != nil {
		logrus.WithError(err).Error("Failed to render verification failure page")
	}
}
