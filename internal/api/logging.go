package api

import (
    "context"

    "go.uber.org/zap"
)

func (s *Server) logEvent(ctx context.Context, event string, fields ...zap.Field) {
    fields = append(fields, zap.String("event", event))
    if id := requestIDFrom(ctx); id != "" {
        fields = append(fields, zap.String("request_id", id))
    }
    if client := clientIDFrom(ctx); client != "" {
        fields = append(fields, zap.String("client_id", client))
    }
    s.logger.Info(event, fields...)
}

// logFailure logs err in full; callers only ever send the error code back.
func (s *Server) logFailure(ctx context.Context, event, reason string, err error, fields ...zap.Field) {
    fields = append(fields, zap.String("reason", reason))
    if reason == "internal_error" {
        s.logger.Error(event, append(fields,
            zap.String("event", event),
            zap.String("request_id", requestIDFrom(ctx)),
            zap.Error(err))...)
        return
    }
    s.logEvent(ctx, event, append(fields, zap.NamedError("cause", err))...)
}
