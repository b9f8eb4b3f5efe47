package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/actions"
	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

func TestToContents(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	turns := []schemas.Turn{
		{Role: schemas.RoleSystem, Parts: []schemas.Part{schemas.TextPart("ignored")}},
		{Role: schemas.RoleUser, Parts: []schemas.Part{
			schemas.TextPart("find flights"),
			schemas.ImagePart(schemas.MIMETypePNG, png),
		}},
		{Role: schemas.RoleModel, Parts: []schemas.Part{
			{Kind: schemas.PartText, Text: "planning", Thought: true, Signature: []byte("sig")},
			schemas.RequestPart(schemas.ActionRequest{ID: "c1", Name: actions.ClickAt, Args: map[string]any{"x": 1.0, "y": 2.0}}),
		}},
		{Role: schemas.RoleUser, Parts: []schemas.Part{
			schemas.ResponsePart(schemas.ActionResponse{
				ID:     "c1",
				Name:   actions.ClickAt,
				URL:    "https://flights.example/",
				Result: schemas.ActionResult{Warning: "slow page"},
			}),
		}},
	}

	contents, err := toContents(turns, false)
	require.NoError(t, err)
	require.Len(t, contents, 3, "system turns travel in the request config")

	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, "find flights", contents[0].Parts[0].Text)
	require.NotNil(t, contents[0].Parts[1].InlineData)
	assert.Equal(t, png, contents[0].Parts[1].InlineData.Data)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)

	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.True(t, contents[1].Parts[0].Thought)
	assert.Equal(t, []byte("sig"), contents[1].Parts[0].ThoughtSignature)
	require.NotNil(t, contents[1].Parts[1].FunctionCall)
	assert.Equal(t, "c1", contents[1].Parts[1].FunctionCall.ID)
	assert.Equal(t, actions.ClickAt, contents[1].Parts[1].FunctionCall.Name)

	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "c1", fr.ID)
	assert.Equal(t, map[string]any{"url": "https://flights.example/", "warning": "slow page"}, fr.Response)
}

func TestToContents_AttachesScreenshotToResponses(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	observed := schemas.Turn{Role: schemas.RoleUser, Parts: []schemas.Part{
		schemas.ResponsePart(schemas.ActionResponse{ID: "c1", Name: actions.ClickAt, URL: "https://a.test/"}),
		schemas.ResponsePart(schemas.ActionResponse{ID: "c2", Name: actions.TypeTextAt, URL: "https://a.test/"}),
		schemas.ImagePart(schemas.MIMETypePNG, png),
	}}
	goal := schemas.Turn{Role: schemas.RoleUser, Parts: []schemas.Part{
		schemas.TextPart("find flights"),
		schemas.ImagePart(schemas.MIMETypePNG, png),
	}}

	t.Run("computer use nests the image in each response", func(t *testing.T) {
		contents, err := toContents([]schemas.Turn{goal, observed}, true)
		require.NoError(t, err)
		require.Len(t, contents, 2)

		require.Len(t, contents[0].Parts, 2, "turns without responses keep their image part")
		assert.Equal(t, png, contents[0].Parts[1].InlineData.Data)

		require.Len(t, contents[1].Parts, 2, "the standalone image is folded into the responses")
		for _, p := range contents[1].Parts {
			require.NotNil(t, p.FunctionResponse)
			require.Len(t, p.FunctionResponse.Parts, 1)
			blob := p.FunctionResponse.Parts[0].InlineData
			require.NotNil(t, blob)
			assert.Equal(t, png, blob.Data)
			assert.Equal(t, "image/png", blob.MIMEType)
		}
	})

	t.Run("functions mode keeps a separate image part", func(t *testing.T) {
		contents, err := toContents([]schemas.Turn{observed}, false)
		require.NoError(t, err)
		require.Len(t, contents[0].Parts, 3)
		assert.Empty(t, contents[0].Parts[0].FunctionResponse.Parts)
		assert.Equal(t, png, contents[0].Parts[2].InlineData.Data)
	})
}

func TestToContents_RejectsEmptyPayload(t *testing.T) {
	_, err := toContents([]schemas.Turn{{Role: schemas.RoleUser, Parts: []schemas.Part{{Kind: schemas.PartImage}}}}, false)
	assert.ErrorContains(t, err, "turn 0 part 0")

	_, err = toContents([]schemas.Turn{{Role: schemas.RoleUser, Parts: []schemas.Part{{Kind: "video"}}}}, false)
	assert.ErrorContains(t, err, "unsupported part kind")
}

func TestFromContent(t *testing.T) {
	content := &genai.Content{
		Role: string(genai.RoleModel),
		Parts: []*genai.Part{
			{Text: "I should click the search box.", Thought: true},
			{Text: "Clicking search."},
			{FunctionCall: &genai.FunctionCall{Name: actions.ClickAt, Args: map[string]any{"x": 10.0, "y": 20.0}}, ThoughtSignature: []byte("s1")},
			{FunctionCall: &genai.FunctionCall{Name: actions.GoBack}},
			nil,
			{},
		},
	}

	turn := fromContent(content)

	assert.Equal(t, schemas.RoleModel, turn.Role)
	require.Len(t, turn.Parts, 4, "nil and empty parts are dropped")
	assert.Equal(t, "Clicking search.", turn.Text(), "thoughts are not part of the answer")
	reqs := turn.ActionRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, map[string]any{"x": 10.0, "y": 20.0}, reqs[0].Args)
	assert.Equal(t, []byte("s1"), turn.Parts[2].Signature)
	assert.NotNil(t, reqs[1].Args, "missing args become an empty mapping")

	assert.Empty(t, fromContent(nil).Parts)
}

func TestToFunctionDeclarations(t *testing.T) {
	decl := toolschema.NewTool("scroll_at").
		Describe("Scrolls at a point.").
		Param("x", toolschema.Integer().Describe("x coordinate")).
		Param("direction", toolschema.Enum("up", "down").WithDefault("down")).
		Param("keys", toolschema.ArrayOf(toolschema.String())).
		Build()

	out := FunctionDeclarations([]toolschema.ToolDeclaration{decl})
	require.Len(t, out, 1)
	fd := out[0]
	assert.Equal(t, "scroll_at", fd.Name)
	assert.Equal(t, "Scrolls at a point.", fd.Description)

	params := fd.Parameters
	require.NotNil(t, params)
	assert.Equal(t, genai.TypeObject, params.Type)
	assert.Equal(t, []string{"x", "direction", "keys"}, params.PropertyOrdering)
	assert.Equal(t, genai.TypeInteger, params.Properties["x"].Type)
	assert.Equal(t, "x coordinate", params.Properties["x"].Description)

	dir := params.Properties["direction"]
	assert.Equal(t, genai.TypeString, dir.Type)
	assert.Equal(t, "enum", dir.Format)
	assert.Equal(t, []string{"up", "down"}, dir.Enum)
	assert.Equal(t, "down", dir.Default)

	keys := params.Properties["keys"]
	assert.Equal(t, genai.TypeArray, keys.Type)
	require.NotNil(t, keys.Items)
	assert.Equal(t, genai.TypeString, keys.Items.Type)

	assert.Equal(t, decl.Parameters().Required(), params.Required)
}
