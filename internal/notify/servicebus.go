package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
)

// ServiceBusConfig holds the Azure Service Bus settings.
type ServiceBusConfig struct {
	ConnectionString string `mapstructure:"notifier.connection_string"`
	QueueName        string `mapstructure:"notifier.queue_name"`
}

// ServiceBusNotifier publishes discrepancy notifications to a Service Bus
// queue consumed by the alerting side.
type ServiceBusNotifier struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
}

// NewServiceBusNotifier creates the client and its queue sender.
func NewServiceBusNotifier(cfg ServiceBusConfig) (*ServiceBusNotifier, error) {
	if cfg.ConnectionString == "" {
		return nil, errors.New("Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &ServiceBusNotifier{client: client, sender: sender}, nil
}

// Dispatch publishes one notification message.
func (n *ServiceBusNotifier) Dispatch(ctx context.Context, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification payload")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"event": "delivery-discrepancy",
			"store": payload.PuntoVendita,
			"time":  time.Now().UTC().Format(time.RFC3339),
		},
	}

	return n.sender.SendMessage(ctx, msg, nil)
}

// Close closes the sender and client.
func (n *ServiceBusNotifier) Close() error {
	if n.sender != nil {
		if err := n.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if n.client != nil {
		return n.client.Close(context.Background())
	}
	return nil
}
