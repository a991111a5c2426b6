package logging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Fields whose values are credentials. They are replaced wholesale.
var secretKeys = []string{"api_key", "apikey", "authorization", "password", "secret", "token"}

const redacted = "[REDACTED]"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactHook masks email addresses in messages and string fields and drops
// credential values before an entry is written.
type RedactHook struct{}

func (h *RedactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *RedactHook) Fire(entry *logrus.Entry) error {
	entry.Message = redactString(entry.Message)

	data := make(logrus.Fields, len(entry.Data))
	for key, value := range entry.Data {
		if isSecretKey(key) {
			data[key] = redacted
			continue
		}
		switch v := value.(type) {
		case string:
			data[key] = redactString(v)
		case error:
			data[key] = redactString(v.Error())
		case fmt.Stringer:
			data[key] = redactString(v.String())
		default:
			data[key] = value
		}
	}
	entry.Data = data
	return nil
}

func redactString(s string) string {
	return emailRegex.ReplaceAllStringFunc(s, RedactEmail)
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, secret := range secretKeys {
		if strings.Contains(key, secret) {
			return true
		}
	}
	return false
}
