package main

import (
	"context"
	"net/http"
	"time"

	"github.com/mastercactapus/cncdrill/sequence"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and event stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := openStation(settings)
		defer st.Close()

		a := newAPI(st, settings.DataDir)
		defer a.Close()

		srv := &http.Server{
			Addr: settings.Server.Addr,
			Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "*")
				log.Debugf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
				a.ServeHTTP(w, req)
			}),
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			log.WithField("addr", srv.Addr).Info("listening")
			err := srv.ListenAndServe()
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				// event streams never go idle
				return srv.Close()
			}
			return nil
		})
		g.Go(func() error {
			err := sequence.Poller{Engine: st.engine, Period: settings.Device.Refresh}.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
		g.Go(func() error {
			every := settings.Server.SaveEvery
			if every <= 0 {
				every = 10 * time.Second
			}
			t := time.NewTicker(every)
			defer t.Stop()
			last := st.ctl.Persisted()
			for {
				select {
				case <-ctx.Done():
					return st.shutdown(settings, configPath)
				case <-t.C:
				}
				p := st.ctl.Persisted()
				if p == last {
					continue
				}
				if err := st.save(settings, configPath); err != nil {
					log.WithError(err).Error("save settings")
					continue
				}
				last = p
			}
		})

		return g.Wait()
	},
}
