package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "SLA Scorecard & KPI Service",
    "description": "SLA compliance, KPIs, departmental scorecards and the integration index over service requests",
    "version": "1.0"
  },
  "basePath": "/",
  "paths": {
    "/api/kpis": {
      "get": {
        "tags": [
          "kpis"
        ],
        "summary": "KPI set",
        "produces": [
          "application/json"
        ],
        "parameters": [
          {
            "name": "window",
            "in": "query",
            "type": "string",
            "enum": [
              "day",
              "week",
              "month",
              "quarter",
              "year"
            ]
          },
          {
            "name": "start",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "end",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "division_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "department_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "side",
            "in": "query",
            "type": "string",
            "enum": [
              "assignee",
              "requester"
            ]
          }
        ],
        "responses": {
          "200": {
            "description": "OK"
          },
          "400": {
            "description": "Invalid window or query"
          },
          "422": {
            "description": "Window holds too many requests"
          }
        }
      }
    },
    "/api/scorecard": {
      "get": {
        "tags": [
          "scorecard"
        ],
        "summary": "Scorecard",
        "produces": [
          "application/json"
        ],
        "parameters": [
          {
            "name": "window",
            "in": "query",
            "type": "string",
            "enum": [
              "day",
              "week",
              "month",
              "quarter",
              "year"
            ]
          },
          {
            "name": "start",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "end",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "division_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "department_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "side",
            "in": "query",
            "type": "string",
            "enum": [
              "assignee",
              "requester"
            ]
          }
        ],
        "responses": {
          "200": {
            "description": "OK"
          },
          "400": {
            "description": "Invalid window or query"
          },
          "422": {
            "description": "Window holds too many requests"
          }
        }
      }
    },
    "/api/integration-index": {
      "get": {
        "tags": [
          "integration"
        ],
        "summary": "Integration index",
        "produces": [
          "application/json"
        ],
        "parameters": [
          {
            "name": "window",
            "in": "query",
            "type": "string",
            "enum": [
              "day",
              "week",
              "month",
              "quarter",
              "year"
            ]
          },
          {
            "name": "start",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "end",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "division_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "department_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "side",
            "in": "query",
            "type": "string",
            "enum": [
              "assignee",
              "requester"
            ]
          }
        ],
        "responses": {
          "200": {
            "description": "OK"
          },
          "400": {
            "description": "Invalid window or query"
          }
        }
      }
    },
    "/api/trends": {
      "get": {
        "tags": [
          "trends"
        ],
        "summary": "Trends",
        "produces": [
          "application/json"
        ],
        "parameters": [
          {
            "name": "window",
            "in": "query",
            "type": "string",
            "enum": [
              "day",
              "week",
              "month",
              "quarter",
              "year"
            ]
          },
          {
            "name": "start",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "end",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "division_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "department_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "side",
            "in": "query",
            "type": "string",
            "enum": [
              "assignee",
              "requester"
            ]
          },
          {
            "name": "granularity",
            "in": "query",
            "type": "string",
            "enum": [
              "daily",
              "weekly",
              "monthly"
            ]
          }
        ],
        "responses": {
          "200": {
            "description": "OK"
          },
          "400": {
            "description": "Invalid window or query"
          }
        }
      }
    },
    "/api/sla/status": {
      "get": {
        "tags": [
          "sla"
        ],
        "summary": "SLA status",
        "produces": [
          "application/json"
        ],
        "parameters": [
          {
            "name": "window",
            "in": "query",
            "type": "string",
            "enum": [
              "day",
              "week",
              "month",
              "quarter",
              "year"
            ]
          },
          {
            "name": "start",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "end",
            "in": "query",
            "type": "string",
            "format": "date-time"
          },
          {
            "name": "division_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "department_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "side",
            "in": "query",
            "type": "string",
            "enum": [
              "assignee",
              "requester"
            ]
          }
        ],
        "responses": {
          "200": {
            "description": "OK"
          },
          "400": {
            "description": "Invalid window or query"
          }
        }
      }
    },
    "/api/requests/{id}/facts": {
      "get": {
        "tags": [
          "requests"
        ],
        "summary": "Request facts",
        "produces": [
          "application/json"
        ],
        "parameters": [
          {
            "name": "id",
            "in": "path",
            "type": "integer",
            "required": true
          }
        ],
        "responses": {
          "200": {
            "description": "OK"
          },
          "400": {
            "description": "Invalid window or query"
          },
          "404": {
            "description": "Not found"
          },
          "422": {
            "description": "Inconsistent record"
          }
        }
      }
    },
    "/api/scorecards/history": {
      "get": {
        "tags": [
          "scorecard"
        ],
        "summary": "Scorecard history",
        "produces": [
          "application/json"
        ],
        "parameters": [
          {
            "name": "division_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "department_id",
            "in": "query",
            "type": "integer"
          },
          {
            "name": "limit",
            "in": "query",
            "type": "integer"
          }
        ],
        "responses": {
          "200": {
            "description": "OK"
          },
          "400": {
            "description": "Invalid window or query"
          }
        }
      }
    },
    "/api/scorecards/snapshot": {
      "post": {
        "tags": [
          "scorecard"
        ],
        "summary": "Run scorecard snapshot",
        "produces": [
          "application/json"
        ],
        "parameters": [],
        "responses": {
          "200": {
            "description": "OK"
          },
          "400": {
            "description": "Invalid window or query"
          }
        }
      }
    }
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
