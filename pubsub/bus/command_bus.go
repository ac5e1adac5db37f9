package bus

import (
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
)

// CommandTopic names the stream a command travels on. Unlike events,
// commands skip the shared topic and go straight to their handler's stream
// ("commands.IssueRefund"), so a refund backlog never slows event fan-out.
func CommandTopic(commandName string) string {
	return "commands." + commandName
}

func NewCommandBus(pub message.Publisher) (*cqrs.CommandBus, error) {
	return cqrs.NewCommandBusWithConfig(pub, cqrs.CommandBusConfig{
		GeneratePublishTopic: func(params cqrs.CommandBusGeneratePublishTopicParams) (string, error) {
			return CommandTopic(params.CommandName), nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
	})
}
