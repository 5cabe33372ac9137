package spanpanel

import (
	"context"
	"os"

	"github.com/spanpanel/spanpanel-go/internal/configwatch"
)

// WatchConfigFile watches path for changes and calls reload with the file's
// new contents each time it changes, until ctx is done or the returned stop
// func is called. Parsing reload's bytes into a models.SimulationConfig (or
// anything else) is left to the caller - this only wires up the fsnotify
// plumbing and the read, e.g.:
//
//	stop, errs, err := spanpanel.WatchConfigFile(ctx, path, func(data []byte) error {
//	    cfg, err := parseYAML(data)
//	    if err != nil {
//	        return err
//	    }
//	    return gen2Client.ReloadSimulationConfig(cfg)
//	})
//
// Errors from a failed read, a failed watch, or reload itself are sent on
// errs on a best-effort basis (a slow consumer can miss one); they never stop
// the watch.
func WatchConfigFile(ctx context.Context, path string, reload func(data []byte) error) (stop func() error, errs <-chan error, err error) {
	w, err := configwatch.New(path)
	if err != nil {
		return nil, nil, err
	}
	changes, watchErrs := w.Watch(ctx)

	out := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			select {
			case _, ok := <-changes:
				if !ok {
					return
				}
				data, rerr := os.ReadFile(path)
				if rerr != nil {
					sendErr(out, rerr)
					continue
				}
				if rerr := reload(data); rerr != nil {
					sendErr(out, rerr)
				}
			case werr, ok := <-watchErrs:
				if !ok {
					return
				}
				sendErr(out, werr)
			case <-ctx.Done():
				return
			}
		}
	}()

	return w.Stop, out, nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
