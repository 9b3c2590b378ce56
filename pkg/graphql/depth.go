package graphql

import (
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
)

// DefaultMaxDepth covers the deepest legitimate query, latest.result.stats
const DefaultMaxDepth = 5

// calculateQueryDepth calculates the maximum depth of a GraphQL document
func calculateQueryDepth(document *ast.Document) int {
	maxDepth := 0
	for _, definition := range document.Definitions {
		if def, ok := definition.(*ast.OperationDefinition); ok {
			if depth := selectionSetDepth(def.SelectionSet, 1); depth > maxDepth {
				maxDepth = depth
			}
		}
	}
	return maxDepth
}

func selectionSetDepth(selectionSet *ast.SelectionSet, currentDepth int) int {
	if selectionSet == nil || len(selectionSet.Selections) == 0 {
		return currentDepth
	}

	maxDepth := currentDepth
	for _, selection := range selectionSet.Selections {
		var depth int
		switch sel := selection.(type) {
		case *ast.Field:
			if strings.HasPrefix(sel.Name.Value, "__") || sel.SelectionSet == nil {
				continue
			}
			depth = selectionSetDepth(sel.SelectionSet, currentDepth+1)
		case *ast.InlineFragment:
			depth = selectionSetDepth(sel.SelectionSet, currentDepth)
		case *ast.FragmentSpread:
			// fragments are not resolved; count one level
			depth = currentDepth + 1
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

// ValidateQueryDepth parses query and checks it against maxDepth
func ValidateQueryDepth(query string, maxDepth int) error {
	document, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return fmt.Errorf("failed to parse query: %w", err)
	}

	if depth := calculateQueryDepth(document); depth > maxDepth {
		return fmt.Errorf("query depth %d exceeds maximum allowed depth %d", depth, maxDepth)
	}
	return nil
}
