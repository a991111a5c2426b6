package gateway

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// HandleAPIGateway adapts an API Gateway proxy event to Handle.
func (g *Gateway) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded && req.Body != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return toProxyResponse(ErrorResult(http.StatusBadRequest, MsgInvalidJSON)), nil
		}
		body = decoded
	}

	return toProxyResponse(g.Handle(ctx, req.HTTPMethod, body)), nil
}

func toProxyResponse(result Result) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: result.StatusCode,
		Headers:    Headers(),
		Body:       string(result.JSON()),
	}
}
