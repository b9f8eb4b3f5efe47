// internal/llmclient/convert.go
package llmclient

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

// -- Conversation Mapping --

// toContents maps the transcript to the wire representation. System turns
// are carried by the request config, not the contents, and are skipped.
//
// With attachScreenshots set, a user turn that answers actions sends its
// screenshot inside every function response instead of as a trailing image
// part, which is how the computer-use tool expects observations.
func toContents(turns []schemas.Turn, attachScreenshots bool) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for i, t := range turns {
		if t.Role == schemas.RoleSystem {
			continue
		}
		var shot *schemas.Blob
		if attachScreenshots {
			shot = responseScreenshot(t)
		}
		parts := make([]*genai.Part, 0, len(t.Parts))
		for j, p := range t.Parts {
			if shot != nil && p.Kind == schemas.PartImage && p.Image == shot {
				continue
			}
			gp, err := toPart(p)
			if err != nil {
				return nil, fmt.Errorf("turn %d part %d: %w", i, j, err)
			}
			if shot != nil && gp.FunctionResponse != nil {
				gp.FunctionResponse.Parts = []*genai.FunctionResponsePart{
					genai.NewFunctionResponsePartFromBytes(shot.Data, shot.MIMEType),
				}
			}
			parts = append(parts, gp)
		}
		var role genai.Role = genai.RoleUser
		if t.Role == schemas.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents, nil
}

// responseScreenshot returns the last image of a turn carrying action
// responses, or nil when the turn has none of either.
func responseScreenshot(t schemas.Turn) *schemas.Blob {
	var (
		shot         *schemas.Blob
		hasResponses bool
	)
	for _, p := range t.Parts {
		switch p.Kind {
		case schemas.PartActionResponse:
			hasResponses = true
		case schemas.PartImage:
			if p.Image != nil && len(p.Image.Data) > 0 {
				shot = p.Image
			}
		}
	}
	if !hasResponses {
		return nil
	}
	return shot
}

func toPart(p schemas.Part) (*genai.Part, error) {
	var gp *genai.Part
	switch p.Kind {
	case schemas.PartText:
		gp = &genai.Part{Text: p.Text, Thought: p.Thought}
	case schemas.PartImage:
		if p.Image == nil {
			return nil, fmt.Errorf("image part has no data")
		}
		gp = genai.NewPartFromBytes(p.Image.Data, p.Image.MIMEType)
	case schemas.PartActionRequest:
		if p.Request == nil {
			return nil, fmt.Errorf("action request part has no request")
		}
		gp = &genai.Part{FunctionCall: &genai.FunctionCall{
			ID:   p.Request.ID,
			Name: p.Request.Name,
			Args: p.Request.Args,
		}}
	case schemas.PartActionResponse:
		if p.Response == nil {
			return nil, fmt.Errorf("action response part has no response")
		}
		gp = &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       p.Response.ID,
			Name:     p.Response.Name,
			Response: p.Response.Payload(),
		}}
	default:
		return nil, fmt.Errorf("unsupported part kind %q", p.Kind)
	}
	gp.ThoughtSignature = p.Signature
	return gp, nil
}

// fromContent maps a model candidate back to a turn. Parts with no
// counterpart, such as executable code, are dropped.
func fromContent(c *genai.Content) schemas.Turn {
	turn := schemas.Turn{Role: schemas.RoleModel}
	if c == nil {
		return turn
	}
	for _, gp := range c.Parts {
		if gp == nil {
			continue
		}
		var p schemas.Part
		switch {
		case gp.FunctionCall != nil:
			args := gp.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			p = schemas.RequestPart(schemas.ActionRequest{
				ID:   gp.FunctionCall.ID,
				Name: gp.FunctionCall.Name,
				Args: args,
			})
		case gp.InlineData != nil:
			p = schemas.ImagePart(gp.InlineData.MIMEType, gp.InlineData.Data)
		case gp.Text != "" || gp.Thought:
			p = schemas.TextPart(gp.Text)
			p.Thought = gp.Thought
		default:
			if len(gp.ThoughtSignature) == 0 {
				continue
			}
			p = schemas.TextPart("")
		}
		p.Signature = gp.ThoughtSignature
		turn.Parts = append(turn.Parts, p)
	}
	return turn
}

// -- Declaration Mapping --

// FunctionDeclarations renders the declarations in the provider's schema
// dialect.
func FunctionDeclarations(decls []toolschema.ToolDeclaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		params := toSchema(d.Parameters())
		out = append(out, &genai.FunctionDeclaration{
			Name:        d.Name(),
			Description: d.Description(),
			Parameters:  params,
		})
	}
	return out
}

func toSchema(s toolschema.ParameterSchema) *genai.Schema {
	gs := &genai.Schema{Description: s.Description()}
	if v, ok := s.Default(); ok {
		gs.Default = v
	}

	switch s.Kind() {
	case toolschema.KindString:
		gs.Type = genai.TypeString
	case toolschema.KindInteger:
		gs.Type = genai.TypeInteger
	case toolschema.KindNumber:
		gs.Type = genai.TypeNumber
	case toolschema.KindBoolean:
		gs.Type = genai.TypeBoolean
	case toolschema.KindEnum:
		gs.Type = genai.TypeString
		gs.Format = "enum"
		gs.Enum = s.EnumValues()
	case toolschema.KindArray:
		gs.Type = genai.TypeArray
		if items, ok := s.Items(); ok {
			gs.Items = toSchema(items)
		} else {
			gs.Items = &genai.Schema{Type: genai.TypeString}
		}
	case toolschema.KindObject:
		gs.Type = genai.TypeObject
		props := s.Properties()
		gs.Properties = make(map[string]*genai.Schema, len(props))
		for _, p := range props {
			gs.Properties[p.Name] = toSchema(p.Schema)
			gs.PropertyOrdering = append(gs.PropertyOrdering, p.Name)
		}
		gs.Required = s.Required()
	default:
		gs.Type = genai.TypeString
	}
	return gs
}
