package services

import (
	"strconv"
	"strings"

	"github.com/yukikurage/task-escalation-engine/internal/constants"
)

// RenderAlert substitutes {fullName}, {taskTitle} and {delayMinutes} in the
// alert template. Every occurrence is replaced and unknown placeholders are
// left as written. A blank template falls back to the built-in message.
func RenderAlert(template, fullName, taskTitle string, delayMinutes int) string {
	if strings.TrimSpace(template) == "" {
		template = constants.FallbackAlertMessage
	}

	r := strings.NewReplacer(
		"{fullName}", fullName,
		"{taskTitle}", taskTitle,
		"{delayMinutes}", strconv.Itoa(delayMinutes),
	)
	return r.Replace(template)
}
