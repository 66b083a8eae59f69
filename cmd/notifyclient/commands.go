package main

import (
	"fmt"

	"github.com/nao1215/animalbase/internal/client"
	"github.com/nao1215/animalbase/pkg/httpclient"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// newAPI は設定を読み込み、セッションのトークンでREST APIを呼ぶクライアントを作る。
func newAPI(opts *options) (*client.API, error) {
	cfg, err := loadConfig(*opts)
	if err != nil {
		return nil, err
	}
	return client.NewAPI(httpclient.New(cfg.Client.APIURL), client.NewSession(cfg.Client.Token)), nil
}

func newReadAllCmd(opts *options, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "ログイン中のユーザーの全通知を既読にする",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := newAPI(opts)
			if err != nil {
				return err
			}
			if err := api.MarkAllRead(cmd.Context()); err != nil {
				logger.Error().Err(err).Msg("全通知の既読処理に失敗")
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "全通知を既読にしました")
			return nil
		},
	}
}

// sendOptions は send サブコマンドのフラグの値。
type sendOptions struct {
	userID    string
	kind      string
	title     string
	message   string
	relatedID int64
}

func newSendCmd(opts *options, logger zerolog.Logger) *cobra.Command {
	var so sendOptions
	cmd := &cobra.Command{
		Use:   "send",
		Short: "通知を作成し、宛先ユーザーのライブ接続へ配信する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := newAPI(opts)
			if err != nil {
				return err
			}
			req := client.SendRequest{
				UserID:  so.userID,
				Type:    so.kind,
				Title:   so.title,
				Message: so.message,
			}
			if cmd.Flags().Changed("related-id") {
				req.RelatedID = &so.relatedID
			}

			res, err := api.Send(cmd.Context(), req)
			if err != nil {
				logger.Error().Err(err).Str("user_id", so.userID).Msg("通知の送信に失敗")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id=%s delivered=%d\n", res.ID, res.Delivered)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&so.userID, "user-id", "", "通知先のユーザーID")
	flags.StringVar(&so.kind, "type", "", "通知の種類（new_sighting など）")
	flags.StringVar(&so.title, "title", "", "通知のタイトル")
	flags.StringVar(&so.message, "message", "", "通知メッセージ")
	flags.Int64Var(&so.relatedID, "related-id", 0, "関連エンティティの識別子")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
