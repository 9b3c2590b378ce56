package graphql

import (
	"github.com/graphql-go/graphql"
)

// Output types. Resolvers hand the default resolver map[string]any values
// built by the view functions in views.go.

var nodeMetricsType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "NodeMetrics",
	Description: "Degree and centrality figures of one node",
	Fields: graphql.Fields{
		"id":             &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"degreeIn":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"degreeOut":      &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"degreeTotal":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"degreeInW":      &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"degreeOutW":     &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"degreeTotalW":   &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"eigenvectorRaw": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"eigenvector":    &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
	},
})

var membershipType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Membership",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"community": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	},
})

var edgeFlagType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "EdgeFlag",
	Description: "Boundary classification of the input link at index",
	Fields: graphql.Fields{
		"index":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"intraCommunity": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"bridgeEdge":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
	},
})

var scoredNodeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ScoredNode",
	Fields: graphql.Fields{
		"id":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"score": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
	},
})

var statsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ComputeStats",
	Fields: graphql.Fields{
		"nodes":               &graphql.Field{Type: graphql.Int},
		"links":               &graphql.Field{Type: graphql.Int},
		"droppedLinks":        &graphql.Field{Type: graphql.Int},
		"communities":         &graphql.Field{Type: graphql.Int},
		"powerIterations":     &graphql.Field{Type: graphql.Int},
		"centralityConverged": &graphql.Field{Type: graphql.Boolean},
		"localMovePasses":     &graphql.Field{Type: graphql.Int},
		"localMoves":          &graphql.Field{Type: graphql.Int},
	},
})

var resultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "MetricsResult",
	Fields: graphql.Fields{
		"nodeMetrics":    &graphql.Field{Type: graphql.NewList(nodeMetricsType)},
		"communities":    &graphql.Field{Type: graphql.NewList(membershipType)},
		"edgeFlags":      &graphql.Field{Type: graphql.NewList(edgeFlagType)},
		"modularityQ":    &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"topEigenvector": &graphql.Field{Type: graphql.NewList(scoredNodeType)},
		"stats":          &graphql.Field{Type: statsType},
	},
})

var snapshotType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Snapshot",
	Description: "The latest successful computation",
	Fields: graphql.Fields{
		"seq":         &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"requestId":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"completedAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		"result":      &graphql.Field{Type: resultType},
	},
})

// Input types

var nodeInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "NodeInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"id": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
	},
})

var linkInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "LinkInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"source": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
		"target": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
		"weight": &graphql.InputObjectFieldConfig{Type: graphql.Float},
	},
})

var computeInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "ComputeInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"nodes":             &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(nodeInputType)))},
		"links":             &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(linkInputType)))},
		"useWeights":        &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"louvainResolution": &graphql.InputObjectFieldConfig{Type: graphql.Float},
	},
})
