// Package providers links every completion backend into the llm registry.
package providers

import (
	_ "github.com/jonesrussell/north-cloud/regwatch/internal/llm/anthropic" // anthropic, claude
	_ "github.com/jonesrussell/north-cloud/regwatch/internal/llm/gemini"    // gemini, google
	_ "github.com/jonesrussell/north-cloud/regwatch/internal/llm/ollama"    // ollama, local
	_ "github.com/jonesrussell/north-cloud/regwatch/internal/llm/openai"    // openai, gpt, chatgpt
)
