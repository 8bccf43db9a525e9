package htmltemplate

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed tmpl/*.tmpl
var Tmpl embed.FS

func ExecuteHTMLTemplate(templateName string, data interface{}) (string, error) {
	// Define the function map that will be available inside the templates
	funcMap := template.FuncMap{
		"EmailStyle": func() template.HTML {
			return emailStyle
		},
	}

	// Parse the templates with the function map
	t, err := template.New("").Funcs(funcMap).ParseFS(Tmpl, "tmpl/*.tmpl")
	if err != nil {
		return "", fmt.Errorf("error parsing embedded template files: %w", err)
	}

	var executedTemplate bytes.Buffer
	err = t.ExecuteTemplate(&executedTemplate, templateName, data)
	if err != nil {
		return "", fmt.Errorf("executing html template: %w", err)
	}

	return executedTemplate.String(), nil
}

// EmptyBodyEmailTemplate wraps a plain-text notification body in the standard
// email chrome. All provider notifications go through this shape.
type EmptyBodyEmailTemplate struct {
	Body template.HTML
}

func ExecuteHTMLTemplateForEmailEmptyBody(data EmptyBodyEmailTemplate) (string, error) {
	return ExecuteHTMLTemplate("empty_body.tmpl", data)
}

// emailStyle is the CSS style that will be included in the email templates.
const emailStyle = template.HTML(`
    <style>
        body {
			font-family: Arial, sans-serif;
			line-height: 1.6;
			color: #000000;
			background-color: #ffffff;
			margin: 0;
			padding: 20px;
		}
		p {
			margin-bottom: 16px;
		}
		.button {
			display: inline-block;
			padding: 10px 20px;
			background-color: #000000;
			color: #ffffff;
			text-decoration: none;
			border-radius: 5px;
			font-weight: bold;
		}
		.button:hover {
			background-color: #333333;
		}
    </style>
`)
