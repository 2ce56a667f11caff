// pkg/fireadmin/fireadmin.go
package fireadmin

import (
	"context"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"apgate/pkg/config"
)

// Clients bundles the Firebase Admin handles the gateway uses. One set
// per process.
type Clients struct {
	Auth      *auth.Client
	Firestore *firestore.Client
}

// MustInit initializes the Firebase app with Application Default
// Credentials, or an explicit service-account file when configured.
func MustInit(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) *Clients {
	var opts []option.ClientOption
	if cfg.FirebaseCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentials))
	}
	var conf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		log.Fatalw("firebase init", "err", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		log.Fatalw("firebase auth", "err", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		log.Fatalw("firestore init", "err", err)
	}
	log.Infow("firebase ready", "project", cfg.FirebaseProjectID)
	return &Clients{Auth: authClient, Firestore: fs}
}

func (c *Clients) Close() error {
	return c.Firestore.Close()
}
