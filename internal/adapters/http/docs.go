package http

import (
	"html/template"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultOpenAPIPath is where the OpenAPI document lives relative to the
// working directory of cmd/api.
const DefaultOpenAPIPath = "api/openapi.yaml"

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Taskpin API {{.Version}}</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0;font-family:sans-serif}header{padding:12px 20px;background:#1b4332;color:#fff}header code{color:#b7e4c7}</style>
</head>
<body>
  <header>
    Taskpin: drop pins for tasks, get told when you reach them.
    Live navigation streams over <code>/ws/navigate</code>; task and navigation events over <code>/ws</code>.
  </header>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      docExpansion: 'list',
      tryItOutEnabled: true,
      presets: [SwaggerUIBundle.presets.apis],
    });
  </script>
</body>
</html>`))

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml. The document is read per request so edits show up
// without a restart.
func SetupDocs(app *fiber.App, deps *Dependencies) {
	path := deps.OpenAPIPath
	if path == "" {
		path = DefaultOpenAPIPath
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		var b strings.Builder
		if err := docsPage.Execute(&b, struct{ Version string }{deps.Version}); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(b.String())
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return newError(c, fiber.StatusNotFound, "not_found", "openapi document not available")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		return c.Send(data)
	})
}
