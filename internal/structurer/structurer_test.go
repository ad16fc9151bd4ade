package structurer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func TestStructureParsesFencedJSON(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("```json\n{\"invoice_no\":\"INV-7\",\"total_amount\":250,\"line_items\":[{\"item_code\":\"SKU1\",\"po_number\":\"PO-1\",\"unit_price\":\"25\",\"qty\":10}]}\n```"), nil)

	s := New(client, "claude-haiku-4-5-20251001")
	rec, err := s.Structure(context.Background(), "Rechnung Nr. INV-7 ...")

	require.NoError(t, err)
	assert.Equal(t, "INV-7", rec.InvoiceNo.Text())
	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, "PO-1", rec.LineItems[0].PONumber)
	client.AssertExpectations(t)
}

func TestStructureEmptyInput(t *testing.T) {
	client := &mockAnthropicClient{}
	s := New(client, "m")

	_, err := s.Structure(context.Background(), "   \n ")
	assert.Error(t, err)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestStructureModelGarbage(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I could not find an invoice in this text."), nil)

	s := New(client, "m")
	_, err := s.Structure(context.Background(), "some text")
	assert.Error(t, err)
}

func TestStructureModelError(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	s := New(client, "m")
	_, err := s.Structure(context.Background(), "some text")
	assert.Error(t, err)
}

func TestStructureSendsSystemPrompt(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.System != "" && len(req.Messages) == 1 && req.Messages[0].Role == "user"
	})).Return(textResponse(`{"invoice_no":"X"}`), nil)

	s := New(client, "m")
	_, err := s.Structure(context.Background(), "text")
	require.NoError(t, err)
	client.AssertExpectations(t)
}
