package remote

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxFrameSize bounds a single framed message
const MaxFrameSize = 64 * 1024

// WriteFrame writes msg with a 4-byte big-endian length prefix
func WriteFrame(w io.Writer, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(data)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("failed to write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if flusher, ok := w.(interface{ Flush() error }); ok {
		_ = flusher.Flush()
	}
	return nil
}

// ReadFrame reads one length-prefixed message into msg
func ReadFrame(r io.Reader, msg proto.Message) error {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length == 0 || length > MaxFrameSize {
		return fmt.Errorf("invalid frame length %d", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	return nil
}

// CommandToStruct converts a command into its protobuf form
func CommandToStruct(cmd Command) (*structpb.Struct, error) {
	return toStruct(cmd)
}

// CommandFromStruct converts a protobuf struct into a command
func CommandFromStruct(s *structpb.Struct) (Command, error) {
	var cmd Command
	err := fromStruct(s, &cmd)
	return cmd, err
}

// ResultToStruct converts a result into its protobuf form
func ResultToStruct(res Result) (*structpb.Struct, error) {
	return toStruct(res)
}

// ResultFromStruct converts a protobuf struct into a result
func ResultFromStruct(s *structpb.Struct) (Result, error) {
	var res Result
	err := fromStruct(s, &res)
	return res, err
}

// The JSON field names of Command and Result are the struct keys
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	return nil
}

// ServeFrames answers framed commands on rw until EOF
func ServeFrames(ctx context.Context, b Backend, rw io.ReadWriter) error {
	for {
		var in structpb.Struct
		if err := ReadFrame(rw, &in); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var res Result
		if cmd, err := CommandFromStruct(&in); err != nil {
			res = Result{Error: err.Error()}
		} else {
			res = Dispatch(ctx, b, cmd)
		}

		out, err := ResultToStruct(res)
		if err != nil {
			return err
		}
		if err := WriteFrame(rw, out); err != nil {
			return err
		}
	}
}

// RoundTrip sends one framed command on rw and reads the result
func RoundTrip(rw io.ReadWriter, cmd Command) (Result, error) {
	in, err := CommandToStruct(cmd)
	if err != nil {
		return Result{}, err
	}
	if err := WriteFrame(rw, in); err != nil {
		return Result{}, err
	}

	var out structpb.Struct
	if err := ReadFrame(rw, &out); err != nil {
		return Result{}, fmt.Errorf("failed to read result: %w", err)
	}
	return ResultFromStruct(&out)
}
