package dynamo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// compositeKey builds a partition + sort key.
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

// exprAttrs hands out #nN / :vN placeholders for a single request so update
// and condition expressions can share one set of attribute maps.
type exprAttrs struct {
	names  map[string]string
	values map[string]types.AttributeValue
	byName map[string]string
}

func newExprAttrs() *exprAttrs {
	return &exprAttrs{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
		byName: map[string]string{},
	}
}

// name returns the placeholder for attr, reusing it on repeat calls.
func (a *exprAttrs) name(attr string) string {
	if p, ok := a.byName[attr]; ok {
		return p
	}
	p := fmt.Sprintf("#n%d", len(a.names))
	a.names[p] = attr
	a.byName[attr] = p
	return p
}

func (a *exprAttrs) value(v interface{}) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", err
	}
	p := fmt.Sprintf(":v%d", len(a.values))
	a.values[p] = av
	return p, nil
}

// set renders a SET clause with attributes in sorted order.
func (a *exprAttrs) set(updates map[string]interface{}) (string, error) {
	if len(updates) == 0 {
		return "", errors.New("no fields to update")
	}
	attrs := make([]string, 0, len(updates))
	for k := range updates {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)

	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		v, err := a.value(updates[attr])
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", attr, err)
		}
		parts = append(parts, a.name(attr)+" = "+v)
	}
	return "SET " + strings.Join(parts, ", "), nil
}
