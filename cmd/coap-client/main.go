package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fxamacker/cbor/v2"
	piondtls "github.com/pion/dtls/v2"
	"github.com/plgd-dev/go-coap/v2/dtls"
	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/udp"
	"github.com/plgd-dev/go-coap/v2/udp/client"

	"com.aviebrantz.feedhub/pkg/util"
)

func dial(addr string, secure bool, certDir string) (*client.ClientConn, error) {
	if !secure {
		return udp.Dial(addr)
	}

	certs := util.NewCertStore(certDir)
	certificate, err := certs.ClientCert()
	if err != nil {
		return nil, err
	}
	rootCertificate, err := certs.RootCert()
	if err != nil {
		return nil, err
	}
	certPool := x509.NewCertPool()
	cert, err := x509.ParseCertificate(rootCertificate.Certificate[0])
	if err != nil {
		return nil, err
	}
	certPool.AddCert(cert)

	return dtls.Dial(addr, &piondtls.Config{
		Certificates:         []tls.Certificate{*certificate},
		ExtendedMasterSecret: piondtls.RequireExtendedMasterSecret,
		RootCAs:              certPool,
	})
}

func main() {
	log.SetHandler(cli.New(os.Stderr))

	addr := flag.String("addr", "127.0.0.1:5688", "gateway address")
	secure := flag.Bool("dtls", false, "dial with DTLS")
	certDir := flag.String("certs", "./certs", "directory with client.pem, client-key.pem and server.pem")
	body := flag.String("post", "", "post this text body instead of getting the path")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	path := "d/esp-1/f/departures"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	co, err := dial(*addr, *secure, *certDir)
	if err != nil {
		log.Fatalf("Error dialing: %v", err)
	}
	defer co.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *body != "" {
		resp, err := co.Post(ctx, path, message.TextPlain, bytes.NewReader([]byte(*body)))
		if err != nil {
			log.Fatalf("Error sending request: %v", err)
		}
		log.Infof("Response code: %v", resp.Code())
		return
	}

	resp, err := co.Get(ctx, path)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	log.Infof("Response code: %v", resp.Code())
	if resp.Body() == nil {
		return
	}

	data, err := ioutil.ReadAll(resp.Body())
	if err != nil {
		log.Fatalf("Error reading response: %v", err)
	}

	var payload interface{}
	if err := cbor.Unmarshal(data, &payload); err != nil {
		fmt.Println(string(data))
		return
	}
	out, err := json.MarshalIndent(toJSON(payload), "", "  ")
	if err != nil {
		log.Fatalf("Error encoding response: %v", err)
	}
	fmt.Println(string(out))
}

// toJSON converts decoded cbor maps to string keyed maps.
func toJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = toJSON(val)
		}
		return m
	case []interface{}:
		for i := range t {
			t[i] = toJSON(t[i])
		}
		return t
	}
	return v
}
