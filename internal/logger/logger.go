package logger

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

var (
	timeColor    = color.New(color.FgHiBlack)
	infoColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	debugColor   = color.New(color.FgCyan)
	pathColor    = color.New(color.FgWhite)
	methodColor  = color.New(color.FgMagenta)
)

func stamp() string {
	return timeColor.Sprintf("[%s]", time.Now().Format("15:04:05"))
}

// Info log une information générale (bleu)
func Info(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), infoColor.Sprintf(message, args...))
}

// Success log un succès (vert)
func Success(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), successColor.Sprintf("✓ "+message, args...))
}

// Warning log un avertissement (jaune)
func Warning(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), warnColor.Sprintf("⚠ "+message, args...))
}

// Error log une erreur (rouge)
func Error(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), errorColor.Sprintf("✗ "+message, args...))
}

// Debug log un message de debug (cyan) - utilisé seulement en développement
func Debug(message string, args ...interface{}) {
	fmt.Printf("%s %s\n", stamp(), debugColor.Sprintf("DEBUG: "+message, args...))
}

// Request log une requête HTTP avec durée
func Request(method, path string, statusCode int, duration time.Duration) {
	var statusColor *color.Color
	switch {
	case statusCode >= 200 && statusCode < 300:
		statusColor = successColor
	case statusCode >= 300 && statusCode < 400:
		statusColor = debugColor
	case statusCode >= 400 && statusCode < 500:
		statusColor = warnColor
	default:
		statusColor = errorColor
	}

	var durationStr string
	if duration < time.Millisecond {
		durationStr = fmt.Sprintf("%.0fµs", float64(duration.Microseconds()))
	} else if duration < time.Second {
		durationStr = fmt.Sprintf("%.0fms", float64(duration.Milliseconds()))
	} else {
		durationStr = fmt.Sprintf("%.2fs", duration.Seconds())
	}

	fmt.Printf("%s %s %s %s %s\n",
		stamp(),
		methodColor.Sprintf("%-6s", method),
		pathColor.Sprintf("%-50s", path),
		statusColor.Sprintf("[%d]", statusCode),
		timeColor.Sprintf("(%s)", durationStr))
}
