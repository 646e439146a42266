package migration

import "fmt"

// AdvisoryLevel is the severity of an advisory
type AdvisoryLevel string

const (
	AdvisoryInfo    AdvisoryLevel = "info"
	AdvisoryWarning AdvisoryLevel = "warning"
	AdvisoryError   AdvisoryLevel = "error"
)

// Advisory reports a remote feature the local store cannot represent.
// It never stops a run.
type Advisory struct {
	Level   AdvisoryLevel
	Message string
}

// Info creates an info advisory
func Info(format string, args ...any) Advisory {
	return Advisory{Level: AdvisoryInfo, Message: fmt.Sprintf(format, args...)}
}

// Warning creates a warning advisory
func Warning(format string, args ...any) Advisory {
	return Advisory{Level: AdvisoryWarning, Message: fmt.Sprintf(format, args...)}
}

// Error creates an error advisory
func Error(format string, args ...any) Advisory {
	return Advisory{Level: AdvisoryError, Message: fmt.Sprintf(format, args...)}
}

// String returns the advisory as "level: message"
func (a Advisory) String() string {
	return fmt.Sprintf("%s: %s", a.Level, a.Message)
}
