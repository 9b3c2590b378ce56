// Package graphql exposes the compute gateway over GraphQL: a computeMetrics
// mutation and a latest query.
package graphql

import (
	"context"
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/snapshot"
)

// Service is what the schema resolves against; *gateway.Gateway satisfies it
type Service interface {
	Compute(ctx context.Context, req engine.Request) (*engine.Result, error)
	Latest() (*snapshot.Snapshot, bool)
}

// ErrMissingInput is returned when the mutation carries no input object
var ErrMissingInput = errors.New("computeMetrics: input is required")

// NewSchema builds the schema over svc
func NewSchema(svc Service) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"latest": &graphql.Field{
				Type:        snapshotType,
				Description: "Latest successful result, null before the first one",
				Resolve: func(p graphql.ResolveParams) (any, error) {
					snap, ok := svc.Latest()
					if !ok {
						return nil, nil
					}
					return snapshotView(snap), nil
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"computeMetrics": &graphql.Field{
				Type:        resultType,
				Description: "Run one computation and wait for its result",
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(computeInputType)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					input, ok := p.Args["input"].(map[string]any)
					if !ok {
						return nil, ErrMissingInput
					}
					req, err := requestFromInput(input)
					if err != nil {
						return nil, err
					}
					ctx := p.Context
					if ctx == nil {
						ctx = context.Background()
					}
					result, err := svc.Compute(ctx, req)
					if err != nil {
						return nil, err
					}
					return resultView(result), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}
