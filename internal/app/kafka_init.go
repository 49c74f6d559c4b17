package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/railfleet/sms/internal/messaging/kafka"
)

// initKafkaProducer поднимает Kafka producer для публикации outbox-событий.
// Пустой список брокеров означает, что сервис работает без Kafka:
// outbox копит pending-записи, возвращается nil, nil.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokerList(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// splitBrokerList разбивает строку вида "host1:9092, host2:9092" на адреса,
// отбрасывая пустые сегменты.
func splitBrokerList(brokers string) []string {
	var list []string
	for _, broker := range strings.Split(brokers, ",") {
		broker = strings.TrimSpace(broker)
		if broker != "" {
			list = append(list, broker)
		}
	}
	return list
}

// closeKafkaProducer закрывает Kafka producer если он не nil.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
