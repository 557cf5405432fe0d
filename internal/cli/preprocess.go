package cli

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
)

type TemplateContext struct {
	ENV map[string]string
}

var missingKeyRegex = regexp.MustCompile(`map has no entry for key "(.*?)"`)

// PreprocessItems replaces {{ .ENV.VAR }} placeholders in an item file. Values come from
// the process environment, then from envFile when it exists. The process environment
// wins when both define a variable.
func PreprocessItems(input []byte, envFile string) ([]byte, error) {
	if !bytes.Contains(input, []byte("{{")) {
		return input, nil
	}

	envMap := map[string]string{}
	if envFile != "" {
		if fileEnv, err := godotenv.Read(envFile); err == nil {
			for k, v := range fileEnv {
				envMap[k] = v
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			envMap[k] = v
		}
	}

	tmpl, err := template.New("items").Option("missingkey=error").Parse(string(input))
	if err != nil {
		return nil, fmt.Errorf("template error: %w", err)
	}

	var output bytes.Buffer
	if err := tmpl.Execute(&output, TemplateContext{ENV: envMap}); err != nil {
		if matches := missingKeyRegex.FindStringSubmatch(err.Error()); len(matches) == 2 {
			return nil, fmt.Errorf("missing environment variable: %s (set it in your shell or .env file)", matches[1])
		}
		return nil, fmt.Errorf("template error: %w", err)
	}
	return output.Bytes(), nil
}
