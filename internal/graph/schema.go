package graph

import (
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
)

var expenseType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ExpenseType",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"amount":      &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"description": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"date":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"category":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

func pageArgs(args graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	args["limit"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10}
	args["offset"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0}
	return args
}

// NewSchema builds the expenses schema with r behind every field.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"getExpense": &graphql.Field{
				Type: expenseType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: observed("getExpense", r.getExpense),
			},
			"listExpenses": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(expenseType))),
				Args:    pageArgs(graphql.FieldConfigArgument{}),
				Resolve: observed("listExpenses", r.listExpenses),
			},
			"searchExpenses": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(expenseType))),
				Args: pageArgs(graphql.FieldConfigArgument{
					"description": &graphql.ArgumentConfig{Type: graphql.String},
					"category":    &graphql.ArgumentConfig{Type: graphql.String},
				}),
				Resolve: observed("searchExpenses", r.searchExpenses),
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createExpense": &graphql.Field{
				Type: graphql.NewNonNull(expenseType),
				Args: graphql.FieldConfigArgument{
					"amount":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"description": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"date":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"category":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: observed("createExpense", r.createExpense),
			},
			"updateExpense": &graphql.Field{
				Type: graphql.NewNonNull(expenseType),
				Args: graphql.FieldConfigArgument{
					"id":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"amount":      &graphql.ArgumentConfig{Type: graphql.Float},
					"description": &graphql.ArgumentConfig{Type: graphql.String},
					"date":        &graphql.ArgumentConfig{Type: graphql.String},
					"category":    &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: observed("updateExpense", r.updateExpense),
			},
			"deleteExpense": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: observed("deleteExpense", r.deleteExpense),
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}

// NewHandler serves schema over HTTP. GraphiQL is only rendered for browser GETs.
func NewHandler(schema graphql.Schema, graphiql bool) http.Handler {
	return handler.New(&handler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: graphiql,
	})
}
