// Package action extracts structured action requests from assistant output
// and executes them under the security policy.
package action

import (
	"encoding/json"
	"regexp"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// Assistant responses embed at most one action as a fenced json block:
//
//	```json
//	{"action": "execute", "command": "ls", "description": "list files"}
//	```
var jsonBlockRe = regexp.MustCompile("(?s)```json\\s*(\\{[^`]+\\})\\s*```")

// Parser implements the ActionParser port.
type Parser struct{}

// NewParser builds a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse scans responseText for fenced json blocks and returns the first one
// that decodes to an object with an action field. Malformed candidates are
// skipped; no qualifying block means "no action requested", not an error.
func (p *Parser) Parse(responseText string) (domain.ActionRequest, bool) {
	for _, match := range jsonBlockRe.FindAllStringSubmatch(responseText, -1) {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(match[1]), &probe); err != nil {
			continue
		}
		if _, ok := probe["action"]; !ok {
			continue
		}
		var req domain.ActionRequest
		if err := json.Unmarshal([]byte(match[1]), &req); err != nil {
			continue
		}
		return req, true
	}
	return domain.ActionRequest{}, false
}

var _ ports.ActionParser = (*Parser)(nil)
