package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/alfrecampione/golden-review-backend/config"
	"github.com/alfrecampione/golden-review-backend/observability"
)

// ErrAnalysisFailed marks a failure of the external analysis function,
// whether transport-level or reported by the function itself.
var ErrAnalysisFailed = errors.New("analysis function failed")

// LambdaInvoker is the subset of the Lambda API the analyzer needs.
type LambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// analysisRequest is the payload the analysis function expects.
type analysisRequest struct {
	S3URL string `json:"s3_url"`
}

// AnalysisInvoker hands a stored application document to the external
// extraction function and returns its structured result.
type AnalysisInvoker struct {
	client       LambdaInvoker
	functionName string
	logger       observability.Logger
	metrics      observability.Metrics
}

// NewAnalysisInvoker creates an invoker for the named function.
func NewAnalysisInvoker(client LambdaInvoker, functionName string, logger observability.Logger, metrics observability.Metrics) *AnalysisInvoker {
	return &AnalysisInvoker{
		client:       client,
		functionName: functionName,
		logger:       logger,
		metrics:      metrics,
	}
}

// NewLambdaClient builds the AWS Lambda client from configuration.
func NewLambdaClient(cfg *config.LambdaConfig) (*lambda.Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}
	return lambda.NewFromConfig(awsCfg), nil
}

// Analyze invokes the analysis function synchronously for one stored
// document and returns the extracted result. When the function wraps its
// result in an HTTP-style envelope, the body is unwrapped.
func (a *AnalysisInvoker) Analyze(ctx context.Context, s3URL string) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		a.metrics.RecordDuration("analysis.invoke", time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(analysisRequest{S3URL: s3URL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis request: %w", err)
	}

	out, err := a.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(a.functionName),
		Payload:      payload,
	})
	if err != nil {
		a.metrics.RecordError("analysis.invoke", "transport")
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	if out.FunctionError != nil {
		a.metrics.RecordError("analysis.invoke", "function_error")
		a.logger.Error(ctx, "analysis function reported an error", nil, observability.Fields{
			"function":       a.functionName,
			"function_error": aws.ToString(out.FunctionError),
		})
		return nil, fmt.Errorf("%w: %s", ErrAnalysisFailed, aws.ToString(out.FunctionError))
	}

	a.metrics.RecordSuccess("analysis.invoke")
	return unwrapAnalysisPayload(out.Payload), nil
}

// unwrapAnalysisPayload peels the HTTP-style envelope some function
// versions emit: {"statusCode":200,"body":"{...}"} carries the real
// result JSON-encoded inside the body string.
func unwrapAnalysisPayload(payload []byte) json.RawMessage {
	var envelope struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || len(envelope.Body) == 0 {
		return payload
	}

	var inner string
	if err := json.Unmarshal(envelope.Body, &inner); err == nil {
		if json.Valid([]byte(inner)) {
			return json.RawMessage(inner)
		}
		return envelope.Body
	}
	return envelope.Body
}
