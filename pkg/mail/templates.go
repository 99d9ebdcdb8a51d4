package mail

import (
	"embed"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"regexp"
	"strings"
)

// Template names understood by the default renderer.
const (
	TemplateVerifyEmail   = "verify-email-via-otp"
	TemplateResetPassword = "reset-password-via-otp"
)

// ErrTemplateNotFound is returned when a template name has no backing file.
var ErrTemplateNotFound = errors.New("mail: template not found")

//go:embed templates/*.html
var embeddedTemplates embed.FS

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template identifies an HTML template and the values substituted into it.
type Template struct {
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables"`
}

// Renderer turns a Template into an HTML body.
type Renderer interface {
	Render(tpl Template) (string, error)
}

// FSRenderer reads `<name>.html` files from a filesystem and replaces {{key}}
// placeholders with HTML-escaped values. Unknown keys render as the empty string.
type FSRenderer struct {
	fsys fs.FS
}

// NewRenderer returns a renderer over the embedded OTP templates.
func NewRenderer() *FSRenderer {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		// embed paths are fixed at compile time
		panic(err)
	}
	return &FSRenderer{fsys: sub}
}

// NewFSRenderer renders templates from an arbitrary filesystem.
func NewFSRenderer(fsys fs.FS) *FSRenderer {
	return &FSRenderer{fsys: fsys}
}

// Render implements Renderer.
func (r *FSRenderer) Render(tpl Template) (string, error) {
	name := strings.TrimSpace(tpl.Name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, tpl.Name)
	}

	raw, err := fs.ReadFile(r.fsys, name+".html")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("mail: read template %q: %w", name, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("mail: template %q is empty", name)
	}

	body := placeholderPattern.ReplaceAllStringFunc(string(raw), func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		return html.EscapeString(tpl.Variables[key])
	})
	return body, nil
}
