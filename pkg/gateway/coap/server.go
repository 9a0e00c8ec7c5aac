package coap

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/pion/dtls/v2"
	coap "github.com/plgd-dev/go-coap/v2"
	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/plgd-dev/go-coap/v2/mux"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"gocloud.dev/pubsub"

	"com.aviebrantz.feedhub/pkg/config"
	"com.aviebrantz.feedhub/pkg/util"
)

type CoAPGateway struct {
	router      *mux.Router
	feeds       FeedProvider
	updateTopic *pubsub.Topic
	logger      *log.Entry
	port        int
	tlsPort     int
	certDir     string
}

func NewGateway(feeds FeedProvider, updateTopic *pubsub.Topic, config *config.GatewayConfig) *CoAPGateway {
	return &CoAPGateway{
		logger:      log.WithField("module", "coap-gateway"),
		port:        config.Port,
		tlsPort:     config.SslPort,
		certDir:     config.CertDir,
		router:      mux.NewRouter(),
		feeds:       feeds,
		updateTopic: updateTopic,
	}
}

// Middleware function, which will be called for each request.
func (cg *CoAPGateway) routerMiddleware(next mux.Handler) mux.Handler {
	return mux.HandlerFunc(func(w mux.ResponseWriter, r *mux.Message) {
		startTime := time.Now()
		ctx, err := tag.New(context.Background(), tag.Insert(KeyMethod, r.Code.String()))
		if err != nil {
			cg.logger.Errorf("err creating metric for request %v", err)
		}
		defer func() {
			stats.Record(ctx, MLatencyMs.M(sinceInMilliseconds(startTime)))
			stats.Record(ctx, MRequests.M(1))
		}()

		path, err := r.Options.Path()
		if err != nil {
			next.ServeCOAP(w, r)
			return
		}
		res, err := parsePath(path)
		if err != nil {
			next.ServeCOAP(w, r)
			return
		}

		switch {
		case res.Kind == kindFeed && r.Code == codes.GET:
			cg.handleGetFeed(ctx, w, r, res)
		case res.Kind == kindConfig && (r.Code == codes.POST || r.Code == codes.PUT):
			cg.handlePostConfig(ctx, w, r, res)
		default:
			cg.respond(w, codes.MethodNotAllowed, message.TextPlain, nil)
		}
	})
}

func (cg *CoAPGateway) respond(w mux.ResponseWriter, code codes.Code, format message.MediaType, body []byte) {
	var err error
	if body == nil {
		err = w.SetResponse(code, format, nil)
	} else {
		err = w.SetResponse(code, format, bytes.NewReader(body))
	}
	if err != nil {
		cg.logger.Errorf("cannot set response: %v", err)
	}
}

func (cg *CoAPGateway) handleGetFeed(ctx context.Context, w mux.ResponseWriter, req *mux.Message, res resource) {
	reqCtx := req.Context
	if reqCtx == nil {
		reqCtx = ctx
	}

	code, body := feedPayload(reqCtx, cg.feeds, res.DeviceID, res.Rest)
	if code != codes.Content {
		cg.logger.Warnf("feed %q for %s answered %v", res.Rest, res.DeviceID, code)
	}

	tagged, err := tag.New(ctx,
		tag.Insert(KeyFeed, res.Rest),
		tag.Insert(KeyFormat, message.AppCBOR.String()),
		tag.Insert(KeyStatus, code.String()))
	if err == nil {
		stats.Record(tagged, MPayloadBytes.M(int64(len(body))))
	}

	cg.respond(w, code, message.AppCBOR, body)
}

func (cg *CoAPGateway) handlePostConfig(ctx context.Context, w mux.ResponseWriter, req *mux.Message, res resource) {
	if req.Body == nil {
		cg.respond(w, codes.BadRequest, message.TextPlain, nil)
		return
	}

	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		cg.logger.Warnf("cannot read request: %v", err)
		cg.respond(w, codes.BadRequest, message.TextPlain, nil)
		return
	}

	format, err := req.Options.ContentFormat()
	if err != nil {
		format = message.TextPlain
	}

	defer func() {
		ctx, err := tag.New(ctx, tag.Insert(KeyFeed, "config"), tag.Insert(KeyFormat, format.String()))
		if err != nil {
			cg.logger.Errorf("err creating metric for request %v", err)
		}
		stats.Record(ctx, MPayloadBytes.M(int64(len(data))))
	}()

	body, err := configUpdate(res.Rest, format, data)
	if err != nil {
		cg.logger.Infof("invalid config update from %s: %v", res.DeviceID, err)
		cg.respond(w, codes.BadRequest, message.TextPlain, []byte(err.Error()))
		return
	}

	err = cg.updateTopic.Send(ctx, &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			"deviceID": res.DeviceID,
			"time":     time.Now().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		cg.logger.Errorf("Err publishing config update: %v", err)
		cg.respond(w, codes.ServiceUnavailable, message.TextPlain, nil)
		return
	}

	cg.logger.Infof("Config update for %s - subpath %s", res.DeviceID, res.Rest)
	cg.respond(w, codes.Changed, message.TextPlain, []byte("OK"))
}

func (cg *CoAPGateway) Start() {
	cg.router.Use(cg.routerMiddleware)

	cg.logger.Info("Starting CoAP Gateway...")
	if cg.port > 0 {
		go func() {
			cg.logger.Fatalf("Error starting listener : %v",
				coap.ListenAndServe(
					"udp",
					":"+strconv.Itoa(cg.port),
					cg.router,
				))
		}()
	}

	if cg.tlsPort > 0 {
		certs := util.NewCertStore(cg.certDir)
		certificate, err := certs.ServerCert()
		if err != nil {
			cg.logger.Fatalf("err loading server cert: %v", err)
		}
		root, err := certs.RootCert()
		if err != nil {
			cg.logger.Fatalf("err opening root cert: %v", err)
		}

		certPool := x509.NewCertPool()
		cert, err := x509.ParseCertificate(root.Certificate[0])
		if err != nil {
			cg.logger.Fatalf("err parsing root cert: %v", err)
		}
		certPool.AddCert(cert)

		go func() {
			cg.logger.Fatalf("Error starting dtls listener : %v",
				coap.ListenAndServeDTLS(
					"udp",
					":"+strconv.Itoa(cg.tlsPort),
					&dtls.Config{
						Certificates:         []tls.Certificate{*certificate},
						ExtendedMasterSecret: dtls.RequireExtendedMasterSecret,
						ClientAuth:           dtls.RequireAndVerifyClientCert,
						ClientCAs:            certPool,
					},
					cg.router,
				))
		}()
	}
}
