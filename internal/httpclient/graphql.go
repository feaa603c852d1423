package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type graphQLRequest struct {
	Query     string `json:"query"`
	Variables any    `json:"variables"`
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// GraphQL posts {query, variables} to the platform's graphql endpoint
// and unmarshals the envelope's data into out. A non-empty errors
// array is fatal even when data is also present: a partially answered
// query must never feed a diff.
func (c *Client) GraphQL(query string, variables any, out any) error {
	var envelope graphQLEnvelope
	if err := c.Do(http.MethodPost, "graphql", graphQLRequest{Query: query, Variables: variables}, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			messages[i] = e.Message
		}
		return fmt.Errorf("graphql error: %s", strings.Join(messages, "; "))
	}
	if envelope.Data == nil {
		return fmt.Errorf("graphql response missing data")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("graphql: decode data: %w", err)
	}
	return nil
}
