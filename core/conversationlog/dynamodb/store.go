// Package dynamodb persists the conversation log in a DynamoDB table.
//
// Each entry is one item keyed PK=CALL#<callID>,
// SK=TURN#<turn>#<ordinal>#<speaker>. The zero-padded turn number and the
// speaker ordinal make the natural SK ordering the transcript ordering, and
// a conditional put makes Append idempotent under webhook retries: rewriting
// an existing (callID, turn, speaker) key is a no-op.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dialcare/callvoice/core/conversationlog"
)

const (
	pkPrefix    = "CALL#"
	skPrefix    = "TURN#"
	ttlDuration = 30 * 24 * time.Hour
)

// api is the minimal DynamoDB surface the store needs. Defined here for
// testability.
type api interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store wraps a DynamoDB table holding conversation log entries.
type Store struct {
	api       api
	tableName string
}

// New creates a Store over the given DynamoDB client and table.
func New(client api, tableName string) (*Store, error) {
	if client == nil {
		return nil, errors.New("conversationlog: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("conversationlog: table name must not be empty")
	}
	return &Store{api: client, tableName: tableName}, nil
}

func callPK(callID string) string {
	return pkPrefix + callID
}

// turnSK orders items by turn, caller before agent within a turn. The
// speaker ordinal keeps the natural SK ordering identical to the transcript
// ordering.
func turnSK(turn int, speaker conversationlog.Speaker) string {
	ordinal := 0
	if speaker == conversationlog.SpeakerAgent {
		ordinal = 1
	}
	return fmt.Sprintf("%s%06d#%d#%s", skPrefix, turn, ordinal, speaker)
}

// Append writes one immutable log entry. Re-appending an already written
// (callID, turn, speaker) key succeeds without modifying the stored item.
func (s *Store) Append(ctx context.Context, entry conversationlog.Entry) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                entryItem(entry),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return fmt.Errorf("conversationlog: Append: %w", err)
	}
	return nil
}

// History queries the ordered transcript for one call.
func (s *Store) History(ctx context.Context, callID string) ([]conversationlog.Entry, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: callPK(callID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversationlog: History query: %w", err)
	}

	entries := make([]conversationlog.Entry, 0, len(out.Items))
	for _, item := range out.Items {
		entry, err := itemToEntry(item)
		if err != nil {
			return nil, fmt.Errorf("conversationlog: History unmarshal: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func entryItem(entry conversationlog.Entry) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: callPK(entry.CallID)},
		"SK":        &types.AttributeValueMemberS{Value: turnSK(entry.Turn, entry.Speaker)},
		"callId":    &types.AttributeValueMemberS{Value: entry.CallID},
		"turn":      &types.AttributeValueMemberN{Value: strconv.Itoa(entry.Turn)},
		"speaker":   &types.AttributeValueMemberS{Value: string(entry.Speaker)},
		"text":      &types.AttributeValueMemberS{Value: entry.Text},
		"timestamp": &types.AttributeValueMemberS{Value: entry.Timestamp.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Add(ttlDuration).Unix(), 10)},
	}
	if entry.ArtifactID != "" {
		item["artifactId"] = &types.AttributeValueMemberS{Value: entry.ArtifactID}
	}
	return item
}

func itemToEntry(item map[string]types.AttributeValue) (conversationlog.Entry, error) {
	callID, err := strAttr(item, "callId")
	if err != nil {
		return conversationlog.Entry{}, err
	}
	speaker, err := strAttr(item, "speaker")
	if err != nil {
		return conversationlog.Entry{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return conversationlog.Entry{}, err
	}
	turn, err := intAttr(item, "turn")
	if err != nil {
		return conversationlog.Entry{}, err
	}
	artifactID, _ := strAttr(item, "artifactId") // optional

	entry := conversationlog.Entry{
		CallID:     callID,
		Turn:       turn,
		Speaker:    conversationlog.Speaker(speaker),
		Text:       text,
		ArtifactID: artifactID,
	}
	if ts, err := strAttr(item, "timestamp"); err == nil {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Timestamp = parsed
		}
	}
	return entry, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
