package main

import (
	"net"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	oracleadapter "github.com/okian/botscope/internal/adapters/oracle"
	"github.com/okian/botscope/internal/config"
	"github.com/okian/botscope/pkg/logger"
)

func newServeOracleCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-oracle",
		Short: "Serve the oracle gRPC contract backed by the Gemini API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := *c.cfg
			cfg.OracleBackend = config.OracleGemini
			o, closer, err := newOracle(ctx, &cfg, c.log.Named("oracle"))
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := grpc.NewServer()
			oracleadapter.RegisterServer(srv, o)
			go func() {
				<-ctx.Done()
				srv.GracefulStop()
			}()
			c.log.Info(ctx, "serving oracle", logger.String("addr", lis.Addr().String()))
			return srv.Serve(lis)
		},
	}
	cmd.Flags().StringVar(&addr, "listen", ":50051", "listen address")
	return cmd
}
