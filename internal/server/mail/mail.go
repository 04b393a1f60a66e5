// Package mail renders and delivers the emails the storefront sends.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Transport delivers a message. Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

var layout = template.Must(template.New("email").Parse(`<div className="email" style="
  border: 1px solid black;
  padding: 20px;
  font-family: sans-serif;
  line-height: 2;
  font-size: 20px;
">
  <h2>Hello There!</h2>
  <p>{{.Body}}</p>
  <p><a href="{{.Link}}">{{.LinkText}}</a></p>
  <p>The Storefront Team</p>
</div>`))

// ResetLink builds <frontendURL>/reset?resetToken=<token>.
func ResetLink(frontendURL, token string) string {
	q := url.Values{"resetToken": []string{token}}
	return strings.TrimRight(frontendURL, "/") + "/reset?" + q.Encode()
}

// PasswordReset renders the reset email for to.
func PasswordReset(to, frontendURL, token string) (Message, error) {
	var buf bytes.Buffer
	err := layout.Execute(&buf, struct {
		Body     string
		Link     string
		LinkText string
	}{
		Body:     "Your password reset token is here! The link is valid for one hour.",
		Link:     ResetLink(frontendURL, token),
		LinkText: "Click here to reset",
	})
	if err != nil {
		return Message{}, fmt.Errorf("render reset email: %w", err)
	}
	return Message{To: to, Subject: "Your Password Reset Token", HTML: buf.String()}, nil
}
