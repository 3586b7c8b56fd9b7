package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// RemoteModel is a model advertised by the Gemini API.
type RemoteModel struct {
	Name             string
	DisplayName      string
	InputTokenLimit  int
	OutputTokenLimit int
	Actions          []string
}

// ListRemoteModels pages through the Gemini model list.
func ListRemoteModels(ctx context.Context, apiKey string) ([]RemoteModel, error) {
	client, err := newGenAIClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	page, err := client.Models.List(ctx, nil)
	if err != nil {
		return nil, classifyFault(fmt.Errorf("list models: %w", err), "")
	}

	var out []RemoteModel
	for {
		for _, m := range page.Items {
			if m == nil {
				continue
			}
			out = append(out, RemoteModel{
				Name:             strings.TrimPrefix(m.Name, "models/"),
				DisplayName:      m.DisplayName,
				InputTokenLimit:  int(m.InputTokenLimit),
				OutputTokenLimit: int(m.OutputTokenLimit),
				Actions:          m.SupportedActions,
			})
		}
		page, err = page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
		if err != nil {
			return out, classifyFault(fmt.Errorf("list models: %w", err), "")
		}
	}
	return out, nil
}
