// Package rabbitmq connects streambox pipelines to a RabbitMQ broker.
//
// Sender publishes outbox records with publisher confirms. Consumer feeds deliveries
// into an inbox and settles each one according to the outcome: ack when staged, reject
// without requeue when the body cannot be decoded, requeue on any other failure.
package rabbitmq
