package mail

import (
	"fmt"
	"net/url"
	"time"
)

// SubjectVerification is the subject of the confirmation email.
const SubjectVerification = "Verify your email address"

// ResetSubject is the subject of the password reset email.
func ResetSubject(ttl time.Duration) string {
	return "Your password reset token (valid for " + humanDuration(ttl) + ")"
}

// VerificationLink returns {baseURL}/api/v1/auth/confirm/{email}/{token}.
func VerificationLink(baseURL, email, token string) string {
	return baseURL + "/api/v1/auth/confirm/" + url.PathEscape(email) + "/" + url.PathEscape(token)
}

// ResetLink returns {baseURL}/api/v1/auth/reset-password/{secret}.
func ResetLink(baseURL, secret string) string {
	return baseURL + "/api/v1/auth/reset-password/" + url.PathEscape(secret)
}

// VerificationBody is the plain-text body of the confirmation email.
func VerificationBody(name, link string, ttl time.Duration) string {
	return fmt.Sprintf(`Hello %s,

Please verify your account by opening the link below:

%s

The link expires in %s. If you did not create an account, ignore this email.
`, name, link, humanDuration(ttl))
}

// ResetBody is the plain-text body of the password reset email.
func ResetBody(link string, ttl time.Duration) string {
	return fmt.Sprintf(`Forgot your password? Submit a PATCH request with your new password to:

%s

The link expires in %s. If you didn't forget your password, please ignore this email.
`, link, humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
