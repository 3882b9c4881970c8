package logging

import "log/slog"

// Domain identifiers

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Chat(id string) slog.Attr {
	return slog.String("chat_id", id)
}

func Message(id string) slog.Attr {
	return slog.String("message_id", id)
}

func Connection(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func EventType(kind string) slog.Attr {
	return slog.String("event_type", kind)
}

// Request / tracing

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
