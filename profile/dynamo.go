package profile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/jinzhu/copier"

	"boardrush/game/domain"
)

const progressSK = "PROGRESS"

// progressItem はシングルテーブル上の1行です。
type progressItem struct {
	PK          string
	SK          string
	Type        string
	ID          string
	XP          int
	Tokens      int
	GamesPlayed int
	Wins        int
	Unlocked    []string `dynamodbav:",stringset,omitempty"`
}

// DynamoStore は DynamoDB のシングルテーブルに成長記録を保存します。
// 加算は UpdateItem の ADD で行うため、複数のルームから同時に反映しても失われません。
type DynamoStore struct {
	d         dynamodbiface.DynamoDBAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(d dynamodbiface.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{d: d, tableName: tableName}
}

func playerKey(id domain.PlayerID) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"PK": {S: aws.String(fmt.Sprintf("PLAYER#%s", id))},
		"SK": {S: aws.String(progressSK)},
	}
}

func (s *DynamoStore) GetProgress(ctx context.Context, id domain.PlayerID) (Progress, error) {
	result, err := s.d.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            playerKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Progress{}, fmt.Errorf("get progress %s: %w", id, err)
	}
	p := Progress{PlayerID: id, Level: 1}
	if len(result.Item) == 0 {
		return p, nil
	}
	var item progressItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return Progress{}, fmt.Errorf("unmarshal progress %s: %w", id, err)
	}
	if err := copier.Copy(&p, &item); err != nil {
		return Progress{}, err
	}
	p.Level = LevelFor(p.XP)
	return p, nil
}

func (s *DynamoStore) ApplyRewards(ctx context.Context, id domain.PlayerID, delta Delta) error {
	if err := delta.Validate(); err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	values := map[string]*dynamodb.AttributeValue{
		":xp":     {N: aws.String(strconv.Itoa(delta.XP))},
		":tokens": {N: aws.String(strconv.Itoa(delta.Tokens))},
		":played": {N: aws.String(boolCount(delta.Played))},
		":wins":   {N: aws.String(boolCount(delta.Win))},
		":id":     {S: aws.String(id.String())},
		":type":   {S: aws.String("ProgressItem")},
	}
	adds := []string{"XP :xp", "Tokens :tokens", "GamesPlayed :played", "Wins :wins"}
	var unlock []string
	for _, u := range delta.Unlock {
		if u != "" {
			unlock = append(unlock, u)
		}
	}
	if len(unlock) > 0 {
		values[":unlock"] = &dynamodb.AttributeValue{SS: aws.StringSlice(unlock)}
		adds = append(adds, "Unlocked :unlock")
	}

	_, err := s.d.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       playerKey(id),
		ExpressionAttributeValues: values,
		UpdateExpression:          aws.String("SET #id = :id, #type = :type ADD " + strings.Join(adds, ", ")),
		ExpressionAttributeNames:  map[string]*string{"#id": aws.String("ID"), "#type": aws.String("Type")},
	})
	if err != nil {
		return fmt.Errorf("apply rewards %s: %w", id, err)
	}
	return nil
}

func boolCount(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
