// Command lambda-http serves the StudyHub API behind API Gateway HTTP APIs.
//
//	GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"studyhub-backend/internal/bootstrap"
	"studyhub-backend/internal/shared/config"
	"studyhub-backend/internal/shared/server/respond"
	"studyhub-backend/internal/shared/telemetry"
)

// proxy builds the app on the first invocation and keeps it for the life of
// the execution environment. A failed build is retried on the next call.
type proxy struct {
	mu      sync.Mutex
	adapter *ginadapter.GinLambdaV2
	build   func() (*bootstrap.App, error)
}

func (p *proxy) get() (*ginadapter.GinLambdaV2, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adapter != nil {
		return p.adapter, nil
	}
	app, err := p.build()
	if err != nil {
		return nil, err
	}
	p.adapter = ginadapter.NewV2(app.Router)
	return p.adapter, nil
}

func (p *proxy) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	adapter, err := p.get()
	if err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{
			"aws_request_id": req.RequestContext.RequestID,
			"error":          err.Error(),
		})
		return unavailable(), nil
	}
	return adapter.ProxyWithContext(ctx, req)
}

func unavailable() events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{
		Error: "service is starting, retry shortly",
		Code:  "service_unavailable",
	})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Headers:    map[string]string{"Content-Type": "application/json", "Retry-After": "1"},
		Body:       string(body),
	}
}

func main() {
	defer telemetry.Sync()
	p := &proxy{build: func() (*bootstrap.App, error) { return bootstrap.Build(config.Load()) }}
	lambda.Start(p.handle)
}
