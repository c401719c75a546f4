package main

import (
	"bytes"
	"html/template"

	"github.com/gofiber/fiber/v2"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
</head>
<body>
    <h1>{{.Title}}</h1>
    <p>Account service is up. Useful endpoints:</p>
    <ul>
        <li><code>POST /api/v1/auth/register</code></li>
        <li><code>POST /api/v1/auth/login</code></li>
        <li><code>GET /api/v1/health</code></li>
        <li><code>GET /api/v1/loading_message</code></li>
        <li><code>GET /ws/stream</code> (websocket)</li>
    </ul>
    <p id="stream">Waiting for stream messages...</p>
    <script>
        const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws/stream");
        ws.onmessage = (event) => {
            const msg = JSON.parse(event.data);
            document.getElementById("stream").textContent = msg.type + ": " + msg.content;
        };
    </script>
</body>
</html>
`))

// indexHandler renders the landing page with a small stream demo
func indexHandler(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, fiber.Map{"Title": "CUWEP"}); err != nil {
		return fiber.ErrInternalServerError
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}
