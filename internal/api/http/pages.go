package http

import (
	"html/template"
	"net/http"

	"guildgate/internal/logger"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h3>{{if .OK}}✅{{else}}❌{{end}} {{.Message}}</h3>
</body>
</html>
`))

type page struct {
	Title   string
	Message string
	OK      bool
}

// writePage renders a result page. The status is always 200; the page text
// tells the browser whether verification was accepted.
func writePage(w http.ResponseWriter, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := pageTemplate.Execute(w, p); err != nil {
		logger.Error("Failed to render page", "error", err)
	}
}

func successPage(message string) page {
	return page{Title: "Verification", Message: message, OK: true}
}

func failurePage(message string) page {
	return page{Title: "Verification failed", Message: message}
}
