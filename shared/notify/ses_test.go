package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/utils"
)

type fakeSES struct {
	sesiface.SESAPI
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmailWithContext(_ aws.Context, in *ses.SendEmailInput, _ ...request.Option) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESNotifierSend(t *testing.T) {
	client := &fakeSES{}
	n := NewSESNotifier(client, "elections@example.edu", nil)

	require.NoError(t, n.Send(context.Background(), "ada@example.edu", "Verify", "<p>hi</p>"))
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "elections@example.edu", aws.StringValue(in.Source))
	assert.Equal(t, "ada@example.edu", aws.StringValue(in.Destination.ToAddresses[0]))
	assert.Equal(t, "Verify", aws.StringValue(in.Message.Subject.Data))
	assert.Equal(t, "<p>hi</p>", aws.StringValue(in.Message.Body.Html.Data))
}

func TestSESNotifierTripsBreaker(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	n := NewSESNotifier(client, "elections@example.edu", utils.NewBreaker("ses", 2, time.Minute))
	ctx := context.Background()

	assert.Error(t, n.Send(ctx, "a@example.edu", "s", "b"))
	assert.Error(t, n.Send(ctx, "a@example.edu", "s", "b"))
	err := n.Send(ctx, "a@example.edu", "s", "b")
	assert.ErrorIs(t, err, utils.ErrBreakerOpen)
	assert.Len(t, client.inputs, 2)
}

func TestNewSelectsNotifier(t *testing.T) {
	n, err := New(&config.AppConfig{Notifier: "log"})
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)
	assert.NoError(t, n.Send(context.Background(), "a@example.edu", "s", "b"))

	_, err = New(&config.AppConfig{Notifier: "pigeon"})
	assert.Error(t, err)
}
