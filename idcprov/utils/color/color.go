// idcprov/utils/color/color.go
package color

import (
	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	infoColor    = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgMagenta, color.Bold)
)

// Disable turns colors off for the whole process.
func Disable() {
	color.NoColor = true
}

func ColorHeader(s string) string {
	return headerColor.Sprint(s)
}

func ColorInfo(s string) string {
	return infoColor.Sprint(s)
}

func ColorWarning(s string) string {
	return warningColor.Sprint(s)
}

func ColorError(s string) string {
	return errorColor.Sprint(s)
}

func ColorFinalSuccess(s string) string {
	return successColor.Sprint(s)
}

func ColorFinalFail(s string) string {
	return failColor.Sprint(s)
}
