package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	projectType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Project",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.String},
			"name":   &graphql.Field{Type: graphql.String},
			"bounds": &graphql.Field{Type: boundsType},
		},
	})

	nodeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Node",
		Fields: graphql.Fields{
			"id":                 &graphql.Field{Type: graphql.String},
			"project_id":         &graphql.Field{Type: graphql.String},
			"name":               &graphql.Field{Type: graphql.String},
			"location":           &graphql.Field{Type: geoPointType},
			"ground_elevation_m": &graphql.Field{Type: graphql.Float},
			"antenna_height_m":   &graphql.Field{Type: graphql.Float},
			"max_range_km":       &graphql.Field{Type: graphql.Float},
			"role":               &graphql.Field{Type: graphql.Int},
		},
	})

	coverageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coverage",
		Fields: graphql.Fields{
			"project_id":   &graphql.Field{Type: graphql.String},
			"rows":         &graphql.Field{Type: graphql.Int},
			"cols":         &graphql.Field{Type: graphql.Int},
			"node_count":   &graphql.Field{Type: graphql.Int},
			"coverage_pct": &graphql.Field{Type: graphql.Float},
			"overlap_pct":  &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"projects": &graphql.Field{
				Type:        graphql.NewList(projectType),
				Description: "List all planning projects",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Projects.List(p.Context)
				},
			},
			"project": &graphql.Field{
				Type:        projectType,
				Description: "Get a project by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Projects.Get(p.Context, id)
				},
			},
			"nodes": &graphql.Field{
				Type:        graphql.NewList(nodeType),
				Description: "List nodes of a project",
				Args: graphql.FieldConfigArgument{
					"project_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					projectID := p.Args["project_id"].(string)
					return deps.Nodes.List(p.Context, projectID)
				},
			},
			"coverage": &graphql.Field{
				Type:        coverageType,
				Description: "Coverage summary of a computed project",
				Args: graphql.FieldConfigArgument{
					"project_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					projectID := p.Args["project_id"].(string)
					return deps.Coverage.GetCoverage(p.Context, projectID)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
