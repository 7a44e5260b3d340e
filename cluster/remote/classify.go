package remote

import (
	"errors"

	"github.com/orbitrt/orbit/actor"
)

func isServerNotRunning(err error) bool {
	return errors.Is(err, actor.ErrServerNotRunning)
}

func isCallTimeout(err error) bool {
	var timeoutErr *actor.CallTimeoutError
	return errors.As(err, &timeoutErr)
}
