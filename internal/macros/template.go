package macros

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// templateFuncs are the helpers available to channel templates.
var templateFuncs = template.FuncMap{
	"duration": FormatDuration,
	"json":     quoteJSON,
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
	"default":  fallback,
}

// ParseTemplate compiles a channel template; referencing an unknown macro is an execution error.
// Params: template name and body.
// Returns: compiled template or parse error.
func ParseTemplate(name, body string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(body)
}

// FormatDuration renders an elapsed time the way state duration macros are shown: "1d 2h 3m 4s".
// Params: seconds as the decimal string duration macros carry, integer seconds, or time.Duration.
// Returns: formatted duration; unparsable input renders as zero.
func FormatDuration(value any) string {
	var seconds int64
	switch typed := value.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err == nil {
			seconds = int64(parsed)
		}
	case int:
		seconds = int64(typed)
	case int64:
		seconds = typed
	case time.Duration:
		seconds = int64(typed / time.Second)
	}
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dd %dh %dm %ds", seconds/86400, seconds%86400/3600, seconds%3600/60, seconds%60)
}

func quoteJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(encoded)
}

// fallback returns value unless it is blank: {{ default "n/a" .NOTIFICATIONCOMMENT }}.
func fallback(def, value string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
