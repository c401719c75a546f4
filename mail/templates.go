package mail

import "html/template"

var confirmTemplate = template.Must(template.New("confirm_email").Parse(`<html>
<body>
  <p>Hi {{.Email}},</p>
  <p>Thanks for registering. Please confirm your account by following the link below:</p>
  <p><a href="{{.Link}}">Confirm your account</a></p>
  <p>If you did not create this account, you can ignore this email.</p>
</body>
</html>`))

var resetTemplate = template.Must(template.New("reset_email").Parse(`<html>
<body>
  <p>Hi {{.Email}},</p>
  <p>A password reset was requested for your account. Follow the link below to choose a new password:</p>
  <p><a href="{{.Link}}">Reset your password</a></p>
  <p>If you did not request this, you can ignore this email and your password will stay unchanged.</p>
</body>
</html>`))
